package handlers

import "net/http"

// LoginPageData holds data for the login template
type LoginPageData struct {
	Error string
}

// handleLoginPage renders the login form
func (h *Handlers) handleLoginPage(w http.ResponseWriter, r *http.Request) {
	// If already logged in, go to the dashboard
	if h.Auth.Authenticated(r) {
		http.Redirect(w, r, "/", http.StatusFound)
		return
	}

	h.templates.Login.Execute(w, LoginPageData{})
}

// handleLogin processes login form submission
func (h *Handlers) handleLogin(w http.ResponseWriter, r *http.Request) {
	password := r.FormValue("password")

	token, ok := h.Auth.Login(password, r.RemoteAddr)
	if !ok {
		h.templates.Login.Execute(w, LoginPageData{
			Error: "Invalid password",
		})
		return
	}

	h.Auth.SetCookie(w, token)
	http.Redirect(w, r, "/", http.StatusFound)
}

// handleLogout clears the session and redirects to login
func (h *Handlers) handleLogout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(h.Auth.CookieName()); err == nil {
		h.Auth.Logout(cookie.Value)
	}

	h.Auth.ClearCookie(w)
	http.Redirect(w, r, "/login", http.StatusFound)
}

// handleListSessions reports the live sessions of this dashboard instance
func (h *Handlers) handleListSessions(w http.ResponseWriter, r *http.Request) {
	resp := SessionsResponse{Instance: h.Auth.Instance(), Sessions: []SessionInfo{}}
	for _, s := range h.Auth.ActiveSessions() {
		resp.Sessions = append(resp.Sessions, SessionInfo{Remote: s.Remote, Created: s.Created, LastSeen: s.LastSeen})
	}
	respondOK(w, resp)
}
