// Package intra contains the 42 Intra API data model and an authenticated
// HTTP client for the profile resource.
package intra

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// PhoneHidden is the sentinel the API returns when a user hides their phone
// number. It must be treated as if the field were absent.
const PhoneHidden = "hidden"

// Validation is the evaluation outcome of a project attempt. The API encodes
// it as a nullable boolean ("validated?"); it is kept as a three-state enum
// here so "not yet evaluated" can never be confused with "failed".
type Validation int

const (
	Pending Validation = iota
	Passed
	Failed
)

func (v Validation) String() string {
	switch v {
	case Passed:
		return "passed"
	case Failed:
		return "failed"
	default:
		return "pending"
	}
}

var jsonNull = []byte("null")

func (v *Validation) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), jsonNull) {
		*v = Pending
		return nil
	}
	var b bool
	if err := json.Unmarshal(data, &b); err != nil {
		return fmt.Errorf("validated flag: %w", err)
	}
	if b {
		*v = Passed
	} else {
		*v = Failed
	}
	return nil
}

func (v Validation) MarshalJSON() ([]byte, error) {
	switch v {
	case Passed:
		return []byte("true"), nil
	case Failed:
		return []byte("false"), nil
	default:
		return jsonNull, nil
	}
}

// Skill is one skill entry inside a cursus membership. Level is typically
// capped near 21 but the API does not guarantee it.
type Skill struct {
	ID    int     `json:"id"`
	Name  string  `json:"name"`
	Level float64 `json:"level"`
}

// Cursus is one track membership. The fractional part of Level is the
// progress toward the next level.
type Cursus struct {
	CursusID int     `json:"cursus_id"`
	Level    float64 `json:"level"`
	Skills   []Skill `json:"skills"`
}

// ProjectInfo carries the display name of a project.
type ProjectInfo struct {
	Name string `json:"name"`
}

// Project is one project attempt.
type Project struct {
	CursusIDs []int       `json:"cursus_ids"`
	FinalMark *int        `json:"final_mark"`
	Validated Validation  `json:"validated?"`
	Project   ProjectInfo `json:"project"`
	Status    string      `json:"status"`
	UpdatedAt string      `json:"updated_at"`
}

// ImageVersions holds the profile picture variants we care about.
type ImageVersions struct {
	Medium string `json:"medium"`
}

// Image is the user's profile picture.
type Image struct {
	Link     string        `json:"link"`
	Versions ImageVersions `json:"versions"`
}

// User is the raw profile record returned by GET /v2/users/{login}.
// The API returns far more; only the fields the derivation and the
// presentation consume are unmarshalled.
type User struct {
	Login           string   `json:"login"`
	DisplayName     string   `json:"displayname"`
	Email           string   `json:"email"`
	Phone           string   `json:"phone"`
	Image           Image    `json:"image"`
	Wallet          int      `json:"wallet"`
	CorrectionPoint int      `json:"correction_point"`
	Location        string   `json:"location"`
	CursusUsers     []Cursus `json:"cursus_users"`
	ProjectsUsers   []Project `json:"projects_users"`
}

// VisiblePhone returns the phone number and whether it may be shown.
// The "hidden" sentinel and the empty string both count as absent.
func (u User) VisiblePhone() (string, bool) {
	if u.Phone == "" || u.Phone == PhoneHidden {
		return "", false
	}
	return u.Phone, true
}

// DisplayLocation returns the user's location, or "Offline" when the API
// reported none.
func (u User) DisplayLocation() string {
	if u.Location == "" {
		return "Offline"
	}
	return u.Location
}
