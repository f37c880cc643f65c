package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mrlokans/patron/internal/entities"
	"github.com/mrlokans/patron/internal/profiles"
)

const dateLayout = "2006-01-02"

// ProfilesController handles profile listing, creation and selection.
type ProfilesController struct {
	store ProfileManager
	ops   AccountOperations
}

func NewProfilesController(store ProfileManager, ops AccountOperations) *ProfilesController {
	return &ProfilesController{store: store, ops: ops}
}

// ProfileView is the JSON representation of a profile.
type ProfileView struct {
	ID                   int     `json:"id"`
	DisplayName          string  `json:"display_name"`
	Current              bool    `json:"current"`
	Anonymous            bool    `json:"anonymous"`
	DateOfBirth          *string `json:"date_of_birth,omitempty"`
	ShowTestingLibraries bool    `json:"show_testing_libraries"`
	Accounts             int     `json:"accounts"`
}

func newProfileView(p *profiles.Profile, current *profiles.Profile) ProfileView {
	prefs := p.Preferences()
	view := ProfileView{
		ID:                   int(p.ID()),
		DisplayName:          p.DisplayName(),
		Current:              current != nil && current.ID() == p.ID(),
		Anonymous:            p.IsAnonymous(),
		ShowTestingLibraries: prefs.ShowTestingLibraries,
		Accounts:             p.Accounts().Len(),
	}
	if prefs.DateOfBirth != nil {
		dob := prefs.DateOfBirth.Format(dateLayout)
		view.DateOfBirth = &dob
	}
	return view
}

// ProfileRequest is the body of profile creation and update requests.
type ProfileRequest struct {
	DisplayName          *string `json:"display_name"`
	DateOfBirth          *string `json:"date_of_birth"`
	ShowTestingLibraries *bool   `json:"show_testing_libraries"`
}

// preferences applies the request on top of base.
func (r ProfileRequest) preferences(base entities.ProfilePreferences) (entities.ProfilePreferences, error) {
	if r.DateOfBirth != nil {
		if *r.DateOfBirth == "" {
			base.DateOfBirth = nil
		} else {
			dob, err := time.Parse(dateLayout, *r.DateOfBirth)
			if err != nil {
				return base, errors.New("date_of_birth must be formatted as YYYY-MM-DD")
			}
			base.DateOfBirth = &dob
		}
	}
	if r.ShowTestingLibraries != nil {
		base.ShowTestingLibraries = *r.ShowTestingLibraries
	}
	return base, nil
}

// ListProfiles handles GET /api/profiles
func (pc *ProfilesController) ListProfiles(c *gin.Context) {
	current, _ := pc.store.Current()
	list := pc.store.Profiles()
	views := make([]ProfileView, 0, len(list))
	for _, p := range list {
		views = append(views, newProfileView(p, current))
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":     pc.store.Mode().String(),
		"profiles": views,
		"count":    len(views),
	})
}

// GetCurrentProfile handles GET /api/profiles/current
func (pc *ProfilesController) GetCurrentProfile(c *gin.Context) {
	current, err := pc.store.Current()
	if err != nil {
		respondFailure(c, err, "current profile")
		return
	}
	c.JSON(http.StatusOK, newProfileView(current, current))
}

// CreateProfile handles POST /api/profiles
func (pc *ProfilesController) CreateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	if req.DisplayName == nil {
		respondBadRequest(c, "display_name is required")
		return
	}
	prefs, err := req.preferences(entities.ProfilePreferences{})
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	p, err := pc.store.CreateProfile(*req.DisplayName, prefs)
	if err != nil {
		respondFailure(c, err, "create profile")
		return
	}
	current, _ := pc.store.Current()
	respondCreated(c, newProfileView(p, current))
}

// UpdateCurrentProfile handles PUT /api/profiles/current
func (pc *ProfilesController) UpdateCurrentProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body")
		return
	}
	current, err := pc.store.Current()
	if err != nil {
		respondFailure(c, err, "current profile")
		return
	}
	prefs, err := req.preferences(current.Preferences())
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	if req.DisplayName != nil {
		if err := current.SetDisplayName(*req.DisplayName); err != nil {
			respondFailure(c, err, "rename profile")
			return
		}
	}
	if req.DateOfBirth != nil || req.ShowTestingLibraries != nil {
		if err := current.SetPreferences(prefs); err != nil {
			respondFailure(c, err, "update preferences")
			return
		}
	}
	c.JSON(http.StatusOK, newProfileView(current, current))
}

// SelectProfile handles POST /api/profiles/:id/select
// The registry is reloaded with the selected profile's books.
func (pc *ProfilesController) SelectProfile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := pc.store.SetCurrent(profiles.ID(id)); err != nil {
		respondFailure(c, err, "select profile")
		return
	}
	current, err := pc.store.Current()
	if err != nil {
		respondFailure(c, err, "current profile")
		return
	}
	if _, err := pc.ops.ActivateProfile(current); err != nil {
		respondFailure(c, err, "activate profile")
		return
	}
	c.JSON(http.StatusOK, newProfileView(current, current))
}

// DeleteProfile handles DELETE /api/profiles/:id
func (pc *ProfilesController) DeleteProfile(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}
	if err := pc.store.DeleteProfile(profiles.ID(id)); err != nil {
		respondFailure(c, err, "delete profile")
		return
	}
	respondSuccess(c, "profile deleted")
}
