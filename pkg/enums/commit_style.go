package enums

import "fmt"

// CommitStyle selects the prompt family used for message generation.
type CommitStyle string

const (
	CommitStyleConventional CommitStyle = "conventional"
	CommitStyleDescriptive  CommitStyle = "descriptive"
	CommitStyleEmoji        CommitStyle = "emoji"
	CommitStyleSemantic     CommitStyle = "semantic"
	CommitStyleTicket       CommitStyle = "ticket"
)

var validCommitStyles = []CommitStyle{
	CommitStyleConventional,
	CommitStyleDescriptive,
	CommitStyleEmoji,
	CommitStyleSemantic,
	CommitStyleTicket,
}

// AllCommitStyles returns the built-in styles in display order.
func AllCommitStyles() []CommitStyle {
	out := make([]CommitStyle, len(validCommitStyles))
	copy(out, validCommitStyles)
	return out
}

// String implements fmt.Stringer.
func (c CommitStyle) String() string {
	return string(c)
}

// IsValid reports whether the value is known.
func (c CommitStyle) IsValid() bool {
	for _, candidate := range validCommitStyles {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCommitStyle converts raw input into a CommitStyle.
func ParseCommitStyle(value string) (CommitStyle, error) {
	for _, candidate := range validCommitStyles {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid commit style %q", value)
}
