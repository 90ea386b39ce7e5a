package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/festlist/internal/models"
)

var _ list.Item = candidateItem{}

// candidateItem wraps [models.ArtistCandidate] with a selection flag to implement [list.Item].
type candidateItem struct {
	candidate models.ArtistCandidate
	selected  bool
}

func (i candidateItem) FilterValue() string { return i.candidate.Name }

func (i candidateItem) Title() string {
	marker := "[ ]"
	if i.selected {
		marker = "[x]"
	}
	return fmt.Sprintf("%s %s", marker, i.candidate.Name)
}

func (i candidateItem) Description() string {
	return fmt.Sprintf("confidence %.0f%%", i.candidate.Confidence*100)
}
