package devserver

import (
	"fmt"
	"strings"

	"taskchat/pkg/models"
)

const (
	maxBodyLen   = 4096
	maxAuthorLen = 128
	maxNameLen   = 256
)

// validateProjectID guards the storage key scheme: project ids become key
// segments delimited by ':', so one inside an id would alias another
// project's prefix.
func validateProjectID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("project id is required")
	}
	if strings.ContainsRune(id, ':') {
		return fmt.Errorf("project id must not contain ':'")
	}
	return nil
}

func validateMessage(m models.Message) error {
	if err := validateProjectID(m.Project); err != nil {
		return err
	}
	if strings.TrimSpace(m.Body) == "" {
		return fmt.Errorf("body is required")
	}
	if len(m.Body) > maxBodyLen {
		return fmt.Errorf("body exceeds %d bytes", maxBodyLen)
	}
	if len(m.Author) > maxAuthorLen {
		return fmt.Errorf("author exceeds %d bytes", maxAuthorLen)
	}
	return nil
}

func validateProject(p models.Project) error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(p.Name) > maxNameLen {
		return fmt.Errorf("name exceeds %d bytes", maxNameLen)
	}
	return nil
}

func validateTask(t models.Task) error {
	if err := validateProjectID(t.Project); err != nil {
		return err
	}
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("title is required")
	}
	switch t.Status {
	case "", "open", "doing", "done":
	default:
		return fmt.Errorf("unknown status %q", t.Status)
	}
	return nil
}

func validateMember(m models.Member) error {
	if err := validateProjectID(m.Project); err != nil {
		return err
	}
	if strings.TrimSpace(m.User) == "" {
		return fmt.Errorf("user is required")
	}
	if strings.ContainsRune(m.User, ':') {
		return fmt.Errorf("user must not contain ':'")
	}
	switch m.Role {
	case "", "member", "admin":
	default:
		return fmt.Errorf("unknown role %q", m.Role)
	}
	return nil
}
