package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/iudanet/taskkeeper/internal/models"
)

const (
	// MaxTitleLen максимальная длина заголовка задачи
	MaxTitleLen = 100
	// MaxDescriptionLen максимальная длина описания задачи
	MaxDescriptionLen = 255
)

// ValidateTitle checks a task title.
func ValidateTitle(title string) error {
	if strings.TrimSpace(title) == "" {
		return fmt.Errorf("title cannot be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLen {
		return fmt.Errorf("title must not exceed %d characters", MaxTitleLen)
	}
	return nil
}

// ValidateDescription checks a task description. Empty is allowed.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLen {
		return fmt.Errorf("description must not exceed %d characters", MaxDescriptionLen)
	}
	return nil
}

// ValidateStatus checks that status is one of the known task statuses.
func ValidateStatus(status models.TaskStatus) error {
	if !status.Valid() {
		return fmt.Errorf("status must be one of %v", models.TaskStatuses)
	}
	return nil
}

// ValidateTaskUpdate validates only the fields present in the update.
func ValidateTaskUpdate(upd models.TaskUpdate) error {
	if upd.Title != nil {
		if err := ValidateTitle(*upd.Title); err != nil {
			return err
		}
	}
	if upd.Description != nil {
		if err := ValidateDescription(*upd.Description); err != nil {
			return err
		}
	}
	if upd.Status != nil {
		if err := ValidateStatus(*upd.Status); err != nil {
			return err
		}
	}
	return nil
}
