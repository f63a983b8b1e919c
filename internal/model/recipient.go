package model

import (
	"fmt"
	"strconv"
	"strings"
)

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// Recipient is the identity a notification is addressed to.
type Recipient struct {
	Role Role
	ID   int64
}

func User(id int64) Recipient  { return Recipient{Role: RoleUser, ID: id} }
func Admin(id int64) Recipient { return Recipient{Role: RoleAdmin, ID: id} }

func (r Recipient) Validate() error {
	if !r.Role.Valid() {
		return &ValidationError{Field: "recipient", Reason: fmt.Sprintf("unknown role %q", r.Role)}
	}
	if r.ID <= 0 {
		return &ValidationError{Field: "recipient", Reason: "id must be positive"}
	}
	return nil
}

// Channel is the broadcast group for this recipient.
func (r Recipient) Channel() Channel {
	return Channel(string(r.Role) + ":" + strconv.FormatInt(r.ID, 10))
}

func (r Recipient) String() string {
	return string(r.Channel())
}

// Channel is "user:<id>" or "admin:<id>".
type Channel string

// ParseChannel is the inverse of Recipient.Channel.
func ParseChannel(s string) (Recipient, error) {
	role, idStr, ok := strings.Cut(s, ":")
	if !ok {
		return Recipient{}, &ValidationError{Field: "channel", Reason: fmt.Sprintf("malformed channel %q", s)}
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Recipient{}, &ValidationError{Field: "channel", Reason: fmt.Sprintf("malformed channel %q", s)}
	}
	r := Recipient{Role: Role(role), ID: id}
	if err := r.Validate(); err != nil {
		return Recipient{}, err
	}
	return r, nil
}
