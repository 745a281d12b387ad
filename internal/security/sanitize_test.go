package security

import "testing"

func TestValidateRepository(t *testing.T) {
	tests := []struct {
		name    string
		repo    string
		wantErr bool
	}{
		// Valid cases
		{"simple", "keelerm84/deploy", false},
		{"with dashes", "my-org/my-repo", false},
		{"with dots", "user/repo.name", false},
		{"with underscores", "my_user/my_repo", false},

		// Invalid formats
		{"empty", "", true},
		{"no slash", "deploy", true},
		{"too many segments", "a/b/c", true},
		{"missing owner", "/deploy", true},
		{"missing name", "keelerm84/", true},
		{"whitespace", "keelerm84/ deploy", true},
		{"leading dash", "-x/deploy", true},
		{"dot segment", "../deploy", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRepository(tt.repo)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRepository(%q) error = %v, wantErr %v", tt.repo, err, tt.wantErr)
			}
		})
	}
}

func TestSplitRepository(t *testing.T) {
	owner, name, err := SplitRepository("keelerm84/deploy")
	if err != nil {
		t.Fatalf("SplitRepository() error = %v", err)
	}
	if owner != "keelerm84" || name != "deploy" {
		t.Errorf("SplitRepository() = %q, %q, want keelerm84, deploy", owner, name)
	}

	if _, _, err := SplitRepository("nope"); err == nil {
		t.Error("SplitRepository() should fail without a slash")
	}
}

func TestRepositoryFromPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"/keelerm84/deploy", "keelerm84/deploy", false},
		{"/keelerm84/deploy.git", "keelerm84/deploy", false},
		{"keelerm84/deploy.git", "keelerm84/deploy", false},
		{"keelerm84/deploy/", "keelerm84/deploy", false},
		{"/keelerm84", "", true},
		{"/a/b/c", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := RepositoryFromPath(tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("RepositoryFromPath(%q) error = %v, wantErr %v", tt.path, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("RepositoryFromPath(%q) = %q, want %q", tt.path, got, tt.want)
			}
		})
	}
}

func TestValidateRef(t *testing.T) {
	tests := []struct {
		name    string
		ref     string
		wantErr bool
	}{
		// Valid cases
		{"main branch", "main", false},
		{"feature branch", "feature/new-feature", false},
		{"release tag", "v1.0.0", false},
		{"full ref", "refs/heads/main", false},
		{"short sha", "def456", false},
		{"full sha", "0123456789abcdef0123456789abcdef01234567", false},

		// Invalid cases
		{"empty", "", true},
		{"leading dash", "-rf", true},
		{"double dot", "main..dev", true},
		{"reflog syntax", "main@{1}", true},
		{"trailing slash", "feature/", true},
		{"lock suffix", "main.lock", true},
		{"space", "my branch", true},
		{"colon", "a:b", true},
		{"caret", "HEAD^", true},
		{"newline", "main\n", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateRef(tt.ref)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateRef(%q) error = %v, wantErr %v", tt.ref, err, tt.wantErr)
			}
		})
	}
}

func TestValidateEnvironment(t *testing.T) {
	tests := []struct {
		name    string
		env     string
		wantErr bool
	}{
		{"staging", "staging", false},
		{"with space", "production eu", false},
		{"empty", "", true},
		{"blank", "   ", true},
		{"control", "prod\x00", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateEnvironment(tt.env)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateEnvironment(%q) error = %v, wantErr %v", tt.env, err, tt.wantErr)
			}
		})
	}
}
