package handlers

import "net/http"

func (h *Handlers) handleDashboardPage(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:     "Registration Dashboard",
		PageTitle: "Dashboard",
		ActiveNav: "dashboard",
	}
	h.templates.Dashboard.ExecuteTemplate(w, "layout", data)
}

func (h *Handlers) handleCoursesPage(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:     "Course Catalog",
		PageTitle: "Courses",
		ActiveNav: "courses",
	}
	h.templates.Courses.ExecuteTemplate(w, "layout", data)
}

func (h *Handlers) handleHistoryPage(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:     "Run History",
		PageTitle: "History",
		ActiveNav: "history",
	}
	h.templates.History.ExecuteTemplate(w, "layout", data)
}

func (h *Handlers) handleSettingsPage(w http.ResponseWriter, r *http.Request) {
	data := PageData{
		Title:     "Settings",
		PageTitle: "Settings",
		ActiveNav: "settings",
	}
	h.templates.Settings.ExecuteTemplate(w, "layout", data)
}
