// Package roster reads and writes the three-column CSV of human users
// the rotation pass operates on.
package roster

import (
	"encoding/csv"
	"fmt"
	"io"
	"net/mail"
	"os"
	"strings"

	iamerrors "github.com/systmms/iamrotate/internal/errors"
)

// Header is the exact required header row of a roster file.
var Header = []string{"name", "email", "iam-username"}

// User is one roster row: the identity of a human plus their stable
// IAM account name. Immutable for the run.
type User struct {
	Name        string `json:"name"`
	Email       string `json:"email"`
	IAMUsername string `json:"iam-username"`
}

// Load reads and validates a roster file. Any malformed row rejects the
// whole batch; nothing talks to the provider before the roster is known
// to be good.
func Load(path string) ([]User, error) {
	fh, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, iamerrors.UserError{
				Message:    fmt.Sprintf("Roster file not found: %s", path),
				Suggestion: "Generate one with 'iamrotate roster' or check the --roster path",
			}
		}
		return nil, fmt.Errorf("opening roster: %w", err)
	}
	defer fh.Close()

	users, err := Read(fh)
	if err != nil {
		if rerr, ok := err.(iamerrors.RosterError); ok {
			rerr.Path = path
			return nil, rerr
		}
		return nil, err
	}
	return users, nil
}

// Read parses roster CSV from r. Exported separately so the single-user
// command can feed a synthesized roster through the same validation.
func Read(r io.Reader) ([]User, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = len(Header)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, iamerrors.RosterError{Message: err.Error()}
	}
	if len(records) == 0 {
		return nil, iamerrors.RosterError{Message: "file is empty"}
	}

	for i, want := range Header {
		if records[0][i] != want {
			return nil, iamerrors.RosterError{
				Message: fmt.Sprintf("incorrect header %v, want %v", records[0], Header),
			}
		}
	}
	if len(records) < 2 {
		return nil, iamerrors.RosterError{Message: "no data rows"}
	}

	users := make([]User, 0, len(records)-1)
	for i, record := range records[1:] {
		user := User{
			Name:        strings.TrimSpace(record[0]),
			Email:       strings.TrimSpace(record[1]),
			IAMUsername: strings.TrimSpace(record[2]),
		}
		if err := Validate(user); err != nil {
			return nil, iamerrors.RosterError{Row: i + 2, Message: err.Error()}
		}
		users = append(users, user)
	}

	return users, nil
}

// Write serializes users as a roster CSV, header included.
func Write(w io.Writer, users []User) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return err
	}
	for _, user := range users {
		if err := writer.Write([]string{user.Name, user.Email, user.IAMUsername}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

// Validate checks one roster row's shape. Exported so the single-user
// command can validate prompted input before it ever reaches a pipeline.
func Validate(u User) error {
	if u.Name == "" {
		return fmt.Errorf("missing name")
	}
	if u.IAMUsername == "" {
		return fmt.Errorf("missing iam-username")
	}
	if u.Email == "" {
		return fmt.Errorf("missing email")
	}
	if _, err := mail.ParseAddress(u.Email); err != nil {
		return fmt.Errorf("malformed email %q", u.Email)
	}
	return nil
}
