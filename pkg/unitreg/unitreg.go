// Package unitreg provides clients for the university's unit registration portal.
package unitreg

import (
	"bytes"
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/abrezinsky/autobid/internal/models"
)

// Page markers
const (
	markerSessionExpired     = "Session Expired"
	markerInvalidCredentials = "Invalid Student ID or Password"
	markerLoggedIn           = "Log Out"
)

// Config holds the portal locations and transport settings
type Config struct {
	LoginURL              string
	RegistrationURL       string
	CourseRegistrationURL string
	UserAgent             string
	InsecureTLS           bool
	Timeout               time.Duration
	// CookieFile, when set, receives the session cookies after each login
	CookieFile string
	// DialogWait bounds how long the browser waits for an alert after submitting
	DialogWait time.Duration
	Headless   bool
}

// DefaultConfig returns the production portal locations
func DefaultConfig() Config {
	base := "https://unitreg.utar.edu.my/portal/courseRegStu"
	return Config{
		LoginURL:              base + "/login.jsp",
		RegistrationURL:       base + "/registration/studentRegistrationSurvey.jsp",
		CourseRegistrationURL: base + "/registration/registerUnitSurvey.jsp",
		UserAgent:             "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
		Timeout:               30 * time.Second,
		DialogWait:            3 * time.Second,
		Headless:              true,
	}
}

// CaptchaSolver turns a captcha image into its text
type CaptchaSolver interface {
	Solve(ctx context.Context, image []byte) (string, error)
}

var alertPattern = regexp.MustCompile(`alert\(\s*["']((?:[^"'\\]|\\.)*)["']\s*\)`)

// alertText returns the message of the first alert("...") call in a page
func alertText(body []byte) string {
	m := alertPattern.FindSubmatch(body)
	if m == nil {
		return ""
	}
	return strings.ReplaceAll(string(m[1]), `\n`, " ")
}

func sessionExpired(body []byte) bool {
	return bytes.Contains(body, []byte(markerSessionExpired))
}

// parseSlotRows reads the availability table of a course page.
// Rows need at least three cells: the second is the class type and the
// third the slot number. A row is selectable when it has an enabled checkbox.
func parseSlotRows(doc *goquery.Document) []models.SlotRow {
	var rows []models.SlotRow
	doc.Find("form[name=frmSummary] tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		if cells.Length() < 3 {
			return
		}
		classType, ok := models.ParseClassType(cells.Eq(1).Text())
		if !ok {
			return
		}
		slot, err := strconv.Atoi(strings.TrimSpace(cells.Eq(2).Text()))
		if err != nil {
			return
		}

		row := models.SlotRow{ClassType: classType, SlotNumber: slot}
		box := tr.Find("input[type=checkbox]").First()
		if box.Length() > 0 {
			_, disabled := box.Attr("disabled")
			value, _ := box.Attr("value")
			row.Selectable = !disabled
			row.Handle = models.SlotHandle(value)
		}
		rows = append(rows, row)
	})
	return rows
}

// parseStudentInfo reads the key/value rows of the registration page header
func parseStudentInfo(doc *goquery.Document) map[string]string {
	info := make(map[string]string)
	doc.Find("table#tblGrid tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			key := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(cells.Eq(i).Text()), ":"))
			if key == "" {
				continue
			}
			info[key] = strings.TrimSpace(cells.Eq(i + 1).Text())
		}
	})
	return info
}
