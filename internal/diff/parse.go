// Package diff splits unified diff text into per-file records.
package diff

import (
	"strings"

	"commitlens/internal/model"
)

const fileMarker = "diff --git "

// Parse splits raw at "diff --git" boundaries. Lines before the first
// boundary belong to no file and are dropped.
func Parse(raw string) []model.FileDiff {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	raw = strings.ReplaceAll(raw, "\r\n", "\n")

	var (
		files  []model.FileDiff
		header string
		body   []string
		open   bool
	)
	flush := func() {
		if open {
			files = append(files, build(header, body))
		}
	}
	for _, line := range strings.Split(raw, "\n") {
		if strings.HasPrefix(line, fileMarker) {
			flush()
			header, body, open = line, nil, true
			continue
		}
		if open {
			body = append(body, line)
		}
	}
	flush()
	return files
}

func build(header string, body []string) model.FileDiff {
	// a trailing newline in the input yields one empty last line
	if n := len(body); n > 0 && body[n-1] == "" {
		body = body[:n-1]
	}
	oldPath, newPath := splitHeader(strings.TrimPrefix(header, fileMarker))

	status := model.FileModified
	if oldPath != newPath {
		status = model.FileRenamed
	}
	for _, line := range body {
		switch {
		case strings.HasPrefix(line, "new file mode"), line == "--- /dev/null":
			status = model.FileAdded
		case strings.HasPrefix(line, "deleted file mode"), line == "+++ /dev/null":
			status = model.FileDeleted
		case strings.HasPrefix(line, "rename from "):
			status = model.FileRenamed
			oldPath = strings.TrimPrefix(line, "rename from ")
		case strings.HasPrefix(line, "rename to "):
			newPath = strings.TrimPrefix(line, "rename to ")
		case strings.HasPrefix(line, "copy from "):
			status = model.FileCopied
			oldPath = strings.TrimPrefix(line, "copy from ")
		case strings.HasPrefix(line, "copy to "):
			newPath = strings.TrimPrefix(line, "copy to ")
		}
		if strings.HasPrefix(line, "@@") {
			break
		}
	}
	if oldPath == "" && newPath != "" {
		status = model.FileAdded
	} else if newPath == "" && oldPath != "" {
		status = model.FileDeleted
	}

	return model.FileDiff{
		Header:  header,
		Label:   Label(status, oldPath, newPath),
		OldPath: oldPath,
		NewPath: newPath,
		Status:  status,
		Hunk:    strings.Join(body, "\n"),
	}
}

// Label renders the display label for a file record.
func Label(status model.FileStatus, oldPath, newPath string) string {
	switch status {
	case model.FileAdded:
		return "added " + firstNonEmpty(newPath, oldPath)
	case model.FileDeleted:
		return "deleted " + firstNonEmpty(oldPath, newPath)
	case model.FileRenamed, model.FileCopied:
		return string(status) + " " + oldPath + " → " + newPath
	default:
		return "modified " + firstNonEmpty(newPath, oldPath)
	}
}

// splitHeader extracts the a/ and b/ paths from the remainder of a
// "diff --git" line. Identical paths are found by symmetry so that
// names containing " b/" still split correctly.
func splitHeader(rest string) (oldPath, newPath string) {
	rest = strings.TrimSpace(rest)
	if n := len(rest); n >= 5 && (n-1)%2 == 0 {
		half := (n - 1) / 2
		a, b := rest[:half], rest[half+1:]
		if rest[half] == ' ' && strings.HasPrefix(a, "a/") && strings.HasPrefix(b, "b/") && a[2:] == b[2:] {
			return a[2:], b[2:]
		}
	}
	a, b, ok := strings.Cut(rest, " b/")
	if !ok {
		return strings.TrimPrefix(rest, "a/"), ""
	}
	return strings.TrimPrefix(a, "a/"), b
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
