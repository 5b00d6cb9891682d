package capability

import "testing"

func TestValidateSessionName(t *testing.T) {
	cases := []struct {
		name    string
		wantErr bool
	}{
		{"agent-1_work", false},
		{"", true},
		{"agent 1", true},
		{"agent;rm -rf", true},
		{"agent$(whoami)", true},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := ValidateSessionName(c.name)
			if (err != nil) != c.wantErr {
				t.Fatalf("ValidateSessionName(%q) error = %v, wantErr %v", c.name, err, c.wantErr)
			}
		})
	}
}

func TestValidateWorkingDirectory(t *testing.T) {
	if err := ValidateWorkingDirectory("/abs/path"); err != nil {
		t.Fatalf("unexpected error for absolute path: %v", err)
	}
	if err := ValidateWorkingDirectory("relative/path"); err == nil {
		t.Fatal("expected error for relative path")
	}
	if err := ValidateWorkingDirectory(""); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestValidateEnvKey(t *testing.T) {
	cases := []struct {
		key     string
		wantErr bool
	}{
		{"MY_VAR", false},
		{"1BAD", true},
		{"has space", true},
		{"INSTANCE_ID", true},
		{"MCP_SERVER_TYPE", true},
	}
	for _, c := range cases {
		t.Run(c.key, func(t *testing.T) {
			err := ValidateEnvKey(c.key)
			if (err != nil) != c.wantErr {
				t.Fatalf("ValidateEnvKey(%q) error = %v, wantErr %v", c.key, err, c.wantErr)
			}
		})
	}
}
