package db

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger"
	"github.com/google/uuid"
)

// User information
type User struct {
	ID                   uuid.UUID         `json:"id"`
	Name                 string            `json:"name"`
	Email                string            `json:"email,omitempty"`
	CalendarID           string            `json:"calendar_id,omitempty"`
	PushoverDeviceTokens map[string]string `json:"pushover_device_tokens"`
	CreatedAt            time.Time         `json:"created_at"`
}

// MissingDevices returns the names that are not Pushover devices of the user
func (u *User) MissingDevices(names []string) []string {
	var missing []string
	for _, name := range names {
		if _, ok := u.PushoverDeviceTokens[name]; !ok {
			missing = append(missing, name)
		}
	}

	return missing
}

func (u *User) badgerKey() []byte {
	return badgerKeyForUsername(u.Name)
}

func badgerKeyForUsername(username string) []byte {
	return append([]byte("user:"), []byte(username)...)
}

// AddUser to the database
func (b *Badger) AddUser(user *User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}

	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}

	return b.db.Update(func(tx *badger.Txn) error {
		key := user.badgerKey()
		if _, err := tx.Get(key); err == nil {
			return fmt.Errorf("user %s already exists", user.Name)
		}

		data, err := json.Marshal(user)
		if err != nil {
			return fmt.Errorf("failed to JSON marshal user: %w", err)
		}

		return tx.Set(key, data)
	})
}

// GetUser from the database by username
func (b *Badger) GetUser(username string) (*User, error) {
	user := &User{}
	err := b.getJSON(badgerKeyForUsername(username), user)
	if err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", username, err)
	}

	return user, nil
}

// GetUserByID from the database
func (b *Badger) GetUserByID(id uuid.UUID) (*User, error) {
	users, err := b.ListUsers()
	if err != nil {
		return nil, err
	}

	for _, user := range users {
		if user.ID == id {
			return user, nil
		}
	}

	return nil, fmt.Errorf("failed to get user id %s: %w", id, ErrNotFound)
}

// ListUsers from the database
func (b *Badger) ListUsers() (users []*User, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		return txEachJSON(tx, []byte("user:"),
			func() interface{} { return &User{} },
			func(_ []byte, value interface{}) error {
				users = append(users, value.(*User))
				return nil
			},
			func(key []byte, err error) {
				b.log.Warnw("skipping unreadable user record", "key", string(key), "error", err)
			},
		)
	})

	return
}

// IsNotFound reports whether err wraps ErrNotFound
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
