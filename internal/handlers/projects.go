package handlers

import (
	"net/http"
	"time"

	"github.com/diewo77/go-expenses/httpx"
	"github.com/diewo77/go-expenses/internal/models"
	"github.com/diewo77/go-expenses/internal/services"
)

// ProjectHandler serves projects, their members and invitations.
type ProjectHandler struct {
	projects    *services.ProjectService
	members     *services.MembershipService
	invitations *services.InvitationService
}

func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	list, err := h.projects.ProjectsForUser(r.Context(), userID(r))
	httpx.Result(w, http.StatusOK, list, err)
}

func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, err)
		return
	}
	p, err := h.projects.CreateProject(r.Context(), userID(r), body.Name)
	httpx.Result(w, http.StatusCreated, p, err)
}

func (h *ProjectHandler) View(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	view, err := h.projects.GetProject(r.Context(), userID(r), pid)
	httpx.Result(w, http.StatusOK, view, err)
}

func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "id")
	if err == nil {
		err = h.projects.DeleteProject(r.Context(), userID(r), pid)
	}
	done(w, err)
}

func (h *ProjectHandler) Leave(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "id")
	if err == nil {
		err = h.projects.LeaveProject(r.Context(), userID(r), pid)
	}
	done(w, err)
}

func (h *ProjectHandler) Stats(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	totals, err := h.projects.ProjectStats(r.Context(), userID(r), pid)
	httpx.Result(w, http.StatusOK, totals, err)
}

func (h *ProjectHandler) Members(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	members, err := h.members.ListProjectMembers(r.Context(), userID(r), pid)
	httpx.Result(w, http.StatusOK, members, err)
}

func (h *ProjectHandler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	target, err := pathID(r, "user")
	if err != nil {
		fail(w, err)
		return
	}
	var body struct {
		Role string `json:"role"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, err)
		return
	}
	done(w, h.members.ChangeMemberRole(r.Context(), userID(r), pid, target, body.Role))
}

func (h *ProjectHandler) Kick(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	target, err := pathID(r, "user")
	if err == nil {
		err = h.members.KickMember(r.Context(), userID(r), pid, target)
	}
	done(w, err)
}

type invitationView struct {
	Token     string      `json:"token"`
	Arg       string      `json:"arg"`
	Role      models.Role `json:"role"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (h *ProjectHandler) Invite(w http.ResponseWriter, r *http.Request) {
	pid, err := pathID(r, "id")
	if err != nil {
		fail(w, err)
		return
	}
	var body struct {
		Role       string `json:"role"`
		TTLSeconds int    `json:"ttl_seconds"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, err)
		return
	}
	ttl := time.Duration(body.TTLSeconds) * time.Second
	inv, err := h.invitations.CreateInvitation(r.Context(), userID(r), pid, body.Role, ttl)
	if err != nil {
		fail(w, err)
		return
	}
	httpx.Result(w, http.StatusCreated, invitationView{
		Token:     inv.Token,
		Arg:       services.InviteArg(inv.Token),
		Role:      inv.Role,
		ExpiresAt: inv.ExpiresAt,
	}, nil)
}

// Redeem accepts the bare token or its inv_ deep-link form.
func (h *ProjectHandler) Redeem(w http.ResponseWriter, r *http.Request) {
	token := r.PathValue("token")
	if t, ok := services.ParseInviteArg(token); ok {
		token = t
	}
	red, err := h.invitations.RedeemInvitation(r.Context(), userID(r), token)
	httpx.Result(w, http.StatusOK, red, err)
}

func (h *ProjectHandler) Active(w http.ResponseWriter, r *http.Request) {
	p, err := h.members.ActiveProject(r.Context(), userID(r))
	httpx.Result(w, http.StatusOK, p, err)
}

func (h *ProjectHandler) SetActive(w http.ResponseWriter, r *http.Request) {
	var body struct {
		ProjectID *uint `json:"project_id"`
	}
	if err := decode(r, &body); err != nil {
		fail(w, err)
		return
	}
	done(w, h.members.SetActiveProject(r.Context(), userID(r), body.ProjectID))
}
