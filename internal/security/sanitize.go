package security

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"
)

var (
	repositoryPattern = regexp.MustCompile(`^[^/\s]+/[^/\s]+$`)
	// characters git check-ref-format rejects anywhere in a ref
	refForbidden = "~^:?*[\\"
)

// ValidateRepository ensures repo is in owner/name form.
func ValidateRepository(repo string) error {
	if repo == "" {
		return fmt.Errorf("repository cannot be empty")
	}
	if !repositoryPattern.MatchString(repo) {
		return fmt.Errorf("repository %q must be in owner/name form", repo)
	}
	owner, name, _ := strings.Cut(repo, "/")
	for _, part := range []string{owner, name} {
		if strings.HasPrefix(part, "-") || part == "." || part == ".." {
			return fmt.Errorf("repository %q contains an invalid path segment", repo)
		}
	}
	return nil
}

// SplitRepository validates repo and returns its owner and name.
func SplitRepository(repo string) (owner, name string, err error) {
	if err := ValidateRepository(repo); err != nil {
		return "", "", err
	}
	owner, name, _ = strings.Cut(repo, "/")
	return owner, name, nil
}

// RepositoryFromPath turns the path of a remote URL (`/owner/repo.git`,
// `owner/repo`) into owner/name.
func RepositoryFromPath(p string) (string, error) {
	p = strings.TrimSuffix(strings.Trim(p, "/"), ".git")
	p = path.Clean(p)
	if err := ValidateRepository(p); err != nil {
		return "", err
	}
	return p, nil
}

// ValidateRef ensures ref is usable as a branch, tag or commit reference.
// Applies the subset of git check-ref-format rules that matter for refs
// passed to the API.
func ValidateRef(ref string) error {
	if ref == "" {
		return fmt.Errorf("ref cannot be empty")
	}
	if strings.HasPrefix(ref, "-") {
		return fmt.Errorf("ref cannot start with '-'")
	}
	if strings.Contains(ref, "..") || strings.Contains(ref, "@{") {
		return fmt.Errorf("ref %q contains an invalid sequence", ref)
	}
	if strings.HasSuffix(ref, "/") || strings.HasSuffix(ref, ".") || strings.HasSuffix(ref, ".lock") {
		return fmt.Errorf("ref %q has an invalid ending", ref)
	}
	for _, r := range ref {
		if unicode.IsSpace(r) || unicode.IsControl(r) || strings.ContainsRune(refForbidden, r) {
			return fmt.Errorf("ref %q contains invalid characters", ref)
		}
	}
	return nil
}

// ValidateEnvironment ensures env is a usable deployment environment name.
func ValidateEnvironment(env string) error {
	if strings.TrimSpace(env) == "" {
		return fmt.Errorf("environment cannot be empty")
	}
	if len(env) > 255 {
		return fmt.Errorf("environment name too long (maximum 255 characters)")
	}
	for _, r := range env {
		if unicode.IsControl(r) {
			return fmt.Errorf("environment name contains control characters")
		}
	}
	return nil
}
