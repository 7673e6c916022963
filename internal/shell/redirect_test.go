package shell

import "testing"

func TestExtractLastRedirectionTarget(t *testing.T) {
	tests := []struct {
		name    string
		command string
		want    string
	}{
		{"no redirection", "ls -la", ""},
		{"simple overwrite", "echo hi > out.txt", "out.txt"},
		{"append", "echo hi >> log/app.log", "log/app.log"},
		{"no space after operator", "echo hi >out.txt", "out.txt"},
		{"last of several", "echo a > first.txt; echo b > second.txt", "second.txt"},
		{"quoted target", `echo x > "my file.txt"`, "my file.txt"},
		{"single quoted target", "echo x > 'out file'", "out file"},
		{"operator inside single quotes", "echo '>' notafile", ""},
		{"operator inside double quotes", `echo "a > b"`, ""},
		{"heredoc skipped", "cat << EOF > out.txt\nhello\nEOF", ""},
		{"bash -c inner command", `bash -c "echo hi > /tmp/inner.txt"`, "/tmp/inner.txt"},
		{"sh -c single quoted inner", `sh -c 'date > stamp.txt'`, "stamp.txt"},
		{"bash -c with heredoc", `bash -c "cat << 'EOF' > f.txt"`, ""},
		{"stderr redirect", "make 2> errors.log", "errors.log"},
		{"stops at metachar", "echo a > out.txt && echo done", "out.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractLastRedirectionTarget(tt.command); got != tt.want {
				t.Errorf("ExtractLastRedirectionTarget(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}

func TestDetectAndFixTarCommand(t *testing.T) {
	cwd := "/work/project"

	tests := []struct {
		name    string
		command string
		want    string
	}{
		{
			name:    "bare filename rewritten",
			command: "tar -czf backup.tar.gz .",
			want:    "tar -czf /work/backup.tar.gz . && mv /work/backup.tar.gz backup.tar.gz",
		},
		{
			name:    "dot slash prefix rewritten",
			command: "tar -czf ./backup.tar.gz .",
			want:    "tar -czf /work/backup.tar.gz . && mv /work/backup.tar.gz ./backup.tar.gz",
		},
		{
			name:    "extra whitespace normalized",
			command: "tar   -czf out.tar.gz .",
			want:    "tar -czf /work/out.tar.gz . && mv /work/out.tar.gz out.tar.gz",
		},
		{
			name:    "absolute output untouched",
			command: "tar -czf /tmp/backup.tar.gz .",
			want:    "tar -czf /tmp/backup.tar.gz .",
		},
		{
			name:    "subdirectory output untouched",
			command: "tar -czf dist/backup.tar.gz .",
			want:    "tar -czf dist/backup.tar.gz .",
		},
		{
			name:    "non tar untouched",
			command: "ls -la .",
			want:    "ls -la .",
		},
		{
			name:    "tar without dot source untouched",
			command: "tar -czf backup.tar.gz src/",
			want:    "tar -czf backup.tar.gz src/",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DetectAndFixTarCommand(tt.command, cwd); got != tt.want {
				t.Errorf("DetectAndFixTarCommand(%q) = %q, want %q", tt.command, got, tt.want)
			}
		})
	}
}
