package extractor

import (
	"fmt"

	"mediadrop/internal/domain"
)

// Argument builders map a media reference plus its platform profile onto the
// extractor's command line. They are pure so invocation shapes can be tested
// without spawning anything.

func profileArgs(profile domain.PlatformProfile) []string {
	var args []string
	if profile.UserAgent != "" {
		args = append(args, "--user-agent", profile.UserAgent)
	}
	if profile.Referer != "" {
		args = append(args, "--referer", profile.Referer)
	}
	if profile.Proxy != "" {
		args = append(args, "--proxy", profile.Proxy)
	}
	if profile.CookiesFile != "" {
		args = append(args, "--cookies", profile.CookiesFile)
	}
	if profile.CookieHeader != "" {
		args = append(args, "--add-header", "Cookie:"+profile.CookieHeader)
	}
	for _, ea := range profile.ExtractorArgs {
		args = append(args, "--extractor-args", ea)
	}
	return args
}

// MetadataArgs builds the metadata-only invocation: one JSON document on
// stdout, nothing downloaded.
func MetadataArgs(ref domain.MediaReference, profile domain.PlatformProfile) []string {
	args := []string{"--dump-json", "--no-playlist", "--no-warnings"}
	args = append(args, profileArgs(profile)...)
	return append(args, ref.CanonicalURL)
}

// FileArgs builds the to-disk invocation. outputTemplate is an extractor
// output template such as "/downloads/<job-id>.%(ext)s"; --newline keeps each
// progress report on its own stdout line for parsing.
func FileArgs(ref domain.MediaReference, profile domain.PlatformProfile, selector, outputTemplate string) []string {
	args := []string{
		"-f", selector,
		"-o", outputTemplate,
		"--newline",
		"--no-playlist",
		"--no-warnings",
		"--no-part",
	}
	args = append(args, profileArgs(profile)...)
	return append(args, ref.CanonicalURL)
}

// StdoutArgs builds the streaming invocation: the payload arrives on stdout,
// diagnostics stay on stderr.
func StdoutArgs(ref domain.MediaReference, profile domain.PlatformProfile, selector string) []string {
	args := []string{
		"-f", selector,
		"-o", "-",
		"--no-playlist",
		"--no-warnings",
	}
	args = append(args, profileArgs(profile)...)
	return append(args, ref.CanonicalURL)
}

// OutputTemplate renders the per-job output template used by FileArgs. The
// extractor substitutes the real container extension on completion.
func OutputTemplate(dir, base string) string {
	return fmt.Sprintf("%s/%s.%%(ext)s", dir, base)
}
