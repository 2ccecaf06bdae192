package handlers

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// File serves a completed download artifact from the retention window.
// ServeContent gives range support, which media players rely on for seeking.
func (a *App) File(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, _, err := a.Files.Open(name)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "no such file")
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "stat failed")
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	http.ServeContent(w, r, name, info.ModTime(), f)
}
