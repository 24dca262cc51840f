// Package profile turns raw Intra user records into the derived view the
// presentation consumes: main-track cursus, finished projects, skill
// ranking. Derivation is a pure function of the input record; fetching and
// commit ordering live in Loader and Viewer.
package profile

import (
	"sort"
	"time"

	"github.com/mgoubin/companion/internal/intra"
)

// Derived is the view computed from one raw user record. MainCursus points
// into User.CursusUsers and shares its lifetime; a later fetch invalidates
// the whole value together.
type Derived struct {
	User intra.User

	// MainCursus is the first membership in the main track, nil when the
	// user has none.
	MainCursus *intra.Cursus

	// FinishedProjects are the main-track projects with status "finished",
	// most recently updated first.
	FinishedProjects []intra.Project

	// RankedSkills are the main cursus skills by level, highest first.
	// Empty when MainCursus is nil.
	RankedSkills []intra.Skill
}

// Derive computes the derived view for a user. It never modifies u's
// collections and has no state: deriving twice from the same record yields
// identical output.
func Derive(u intra.User, mainCursusID int) Derived {
	d := Derived{User: u}

	for i := range u.CursusUsers {
		if u.CursusUsers[i].CursusID == mainCursusID {
			d.MainCursus = &d.User.CursusUsers[i]
			break
		}
	}

	d.FinishedProjects = finishedProjects(u.ProjectsUsers, mainCursusID)

	if d.MainCursus != nil {
		d.RankedSkills = rankSkills(d.MainCursus.Skills)
	}

	return d
}

func finishedProjects(projects []intra.Project, mainCursusID int) []intra.Project {
	var out []intra.Project
	for _, p := range projects {
		if p.Status != "finished" {
			continue
		}
		if !containsInt(p.CursusIDs, mainCursusID) {
			continue
		}
		out = append(out, p)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return updatedAt(out[i]).After(updatedAt(out[j]))
	})
	return out
}

// updatedAt parses the project timestamp; missing or malformed values sort
// as the epoch, i.e. oldest.
func updatedAt(p intra.Project) time.Time {
	if p.UpdatedAt == "" {
		return time.Unix(0, 0).UTC()
	}
	t, err := time.Parse(time.RFC3339, p.UpdatedAt)
	if err != nil {
		return time.Unix(0, 0).UTC()
	}
	return t
}

func rankSkills(skills []intra.Skill) []intra.Skill {
	out := make([]intra.Skill, len(skills))
	copy(out, skills)
	// Stable: equal levels keep input order.
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Level > out[j].Level
	})
	return out
}

func containsInt(xs []int, x int) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
