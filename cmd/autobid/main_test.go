package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/autobid/internal/models"
	"github.com/abrezinsky/autobid/internal/services"
)

const noDelays = "retry:\n  settle_delay: 0s\n  backoff: 0s\n  max_backoff: 0s\n"

// writeTestConfig points the CLI at a throwaway database with no retry delays
func writeTestConfig(t *testing.T) {
	t.Helper()
	writeTestConfigWith(t, noDelays)
}

func writeTestConfigWith(t *testing.T, retry string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "autobid.yaml")
	cfg := "db:\n  path: " + filepath.Join(dir, "autobid.db") + "\n" +
		"log:\n  level: error\n" +
		"captcha:\n  command: cat\n" + retry
	if err := os.WriteFile(path, []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	configPath = path
	logLevel = ""
	t.Cleanup(func() { configPath = "" })
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(t, context.Background(), args...)
}

func executeContext(t *testing.T, ctx context.Context, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	setContext(rootCmd, ctx)
	err := rootCmd.ExecuteContext(ctx)
	return out.String(), err
}

// setContext replaces the context cobra keeps on every command from earlier executions
func setContext(cmd *cobra.Command, ctx context.Context) {
	cmd.SetContext(ctx)
	for _, c := range cmd.Commands() {
		setContext(c, ctx)
	}
}

func TestParseSlots(t *testing.T) {
	tests := []struct {
		input   string
		want    models.RankedSlots
		wantErr bool
	}{
		{"", nil, false},
		{"3", models.RankedSlots{3}, false},
		{"2, 1,5", models.RankedSlots{2, 1, 5}, false},
		{"1,x", nil, true},
		{"1,1", nil, true},
		{"0", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := parseSlots(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("expected %v, got %v", tt.want, got)
				}
			}
		})
	}
}

func TestFormatSlots(t *testing.T) {
	c := models.CourseSpec{Code: "CSC1001", Slots: map[models.ClassType]models.RankedSlots{
		models.Practical: {4},
		models.Lecture:   {2, 1},
	}}
	if got := formatSlots(c); got != "L 2,1  P 4" {
		t.Errorf("unexpected %q", got)
	}
	if got := formatSlots(models.CourseSpec{Code: "X"}); got != "-" {
		t.Errorf("expected - for a course without slots, got %q", got)
	}
}

func TestSettingsUpdate(t *testing.T) {
	u, err := settingsUpdate(services.KeyMaxRetries, "4")
	if err != nil || u.MaxRetries == nil || *u.MaxRetries != 4 {
		t.Errorf("unexpected update %+v, err %v", u, err)
	}
	u, err = settingsUpdate(services.KeyHeadlessMode, "false")
	if err != nil || u.Headless == nil || *u.Headless {
		t.Errorf("unexpected update %+v, err %v", u, err)
	}
	if _, err := settingsUpdate(services.KeyHeadlessMode, "maybe"); err == nil {
		t.Error("expected error for invalid bool")
	}
	if _, err := settingsUpdate(services.KeyMaxRetries, "many"); err == nil {
		t.Error("expected error for invalid number")
	}
	if _, err := settingsUpdate("colour", "blue"); err == nil {
		t.Error("expected error for unknown key")
	}
}

func TestPrintSummary(t *testing.T) {
	var buf bytes.Buffer
	printSummary(&buf, &models.RunSummary{
		RunID:  "run-1",
		Passes: 1,
		Results: []models.CourseResult{
			{Code: "CSC1001", Name: "Programming", State: models.StateSatisfied, Outcome: models.OutcomeSuccess, Attempts: 1},
			{Code: "MPU3113", Name: "Ethics", State: models.StateAbandoned, Outcome: models.OutcomeScheduleClash, Attempts: 1},
		},
	})

	out := buf.String()
	for _, want := range []string{"CSC1001", "satisfied", "MPU3113", "abandoned", "Run run-1 completed after 1 pass: 1/2 registered"} {
		if !strings.Contains(out, want) {
			t.Errorf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestSetup_EachDashboardGetsItsOwnInstance(t *testing.T) {
	writeTestConfig(t)
	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	first, err := setup(rootCmd, cfg, "pw")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer first.Close()
	other := *cfg
	other.DB.Path = filepath.Join(t.TempDir(), "other.db")
	second, err := setup(rootCmd, &other, "pw")
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	defer second.Close()

	if first.auth.Instance() == "" || first.auth.Instance() == second.auth.Instance() {
		t.Errorf("expected distinct instances, got %q and %q", first.auth.Instance(), second.auth.Instance())
	}
	if _, ok := first.auth.Login("pw", "127.0.0.1:5000"); !ok {
		t.Error("expected the given password to open the dashboard")
	}

	var buf bytes.Buffer
	printBanner(&buf, first.auth.Instance(), "pw")
	for _, want := range []string{"Dashboard instance", first.auth.Instance(), "Password:", "pw"} {
		if !strings.Contains(buf.String(), want) {
			t.Errorf("expected %q in banner:\n%s", want, buf.String())
		}
	}
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out, "autobid dev") {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCoursesAndDryRun(t *testing.T) {
	writeTestConfig(t)

	if _, err := execute(t, "courses", "add", "CSC1001", "--name", "Programming", "--lecture", "2,1", "--tutorial", "5"); err != nil {
		t.Fatalf("courses add failed: %v", err)
	}
	courseName, courseLectures, courseTutorials = "", "", ""
	if _, err := execute(t, "courses", "add", "MPU3113", "--practical", "1"); err != nil {
		t.Fatalf("courses add failed: %v", err)
	}
	coursePracticals = ""

	out, err := execute(t, "courses", "list")
	if err != nil {
		t.Fatalf("courses list failed: %v", err)
	}
	if !strings.Contains(out, "CSC1001") || !strings.Contains(out, "L 2,1  T 5") || !strings.Contains(out, "MPU3113") {
		t.Errorf("unexpected listing:\n%s", out)
	}
	if strings.Index(out, "CSC1001") > strings.Index(out, "MPU3113") {
		t.Errorf("expected catalog order to be kept:\n%s", out)
	}

	if _, err := execute(t, "courses", "move", "MPU3113", "0"); err == nil {
		t.Error("expected error for zero delta")
	}

	out, err = execute(t, "run", "--dry-run")
	if err != nil {
		t.Fatalf("dry run failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "2/2 registered") {
		t.Errorf("expected every course registered:\n%s", out)
	}
	runDryRun = false

	out, err = execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, services.MethodDryRun) || !strings.Contains(out, string(models.RunCompleted)) {
		t.Errorf("expected the dry run in history:\n%s", out)
	}
}

func TestSettingsSetAndShow(t *testing.T) {
	writeTestConfig(t)

	if _, err := execute(t, "settings", "set", "student_id", "21abc01234"); err != nil {
		t.Fatalf("settings set failed: %v", err)
	}
	if _, err := execute(t, "settings", "set", "method", "carrier-pigeon"); err == nil {
		t.Error("expected error for invalid method")
	}
	if _, err := execute(t, "settings", "set", "method"); err == nil {
		t.Error("expected error for missing value")
	}

	out, err := execute(t, "settings", "show")
	if err != nil {
		t.Fatalf("settings show failed: %v", err)
	}
	if !strings.Contains(out, "21ABC01234") {
		t.Errorf("expected normalized student id:\n%s", out)
	}
	if !strings.Contains(out, "(not set)") {
		t.Errorf("expected password to be reported unset:\n%s", out)
	}
}

func TestRun_StopIsNotAFailure(t *testing.T) {
	writeTestConfigWith(t, "retry:\n  settle_delay: 5s\n  backoff: 0s\n  max_backoff: 0s\n")
	if _, err := execute(t, "courses", "add", "CSC1001", "--lecture", "1"); err != nil {
		t.Fatalf("courses add failed: %v", err)
	}
	courseLectures = ""
	defer func() { runDryRun = false }()

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()
	out, err := executeContext(t, ctx, "run", "--dry-run")

	if err != nil {
		t.Fatalf("expected a stopped run to succeed, got %v\n%s", err, out)
	}
	if !strings.Contains(out, "stopped after") || !strings.Contains(out, "0/1 registered") {
		t.Errorf("expected the stopped summary:\n%s", out)
	}
	if strings.Contains(out, "Error:") {
		t.Errorf("expected no error output:\n%s", out)
	}

	out, err = execute(t, "history")
	if err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if !strings.Contains(out, string(models.RunStopped)) {
		t.Errorf("expected the run recorded as stopped:\n%s", out)
	}
}

func TestRun_StopWhileWaitingForSchedule(t *testing.T) {
	writeTestConfig(t)
	defer func() { runAt = "" }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	out, err := executeContext(t, ctx, "run", "--at", "@every 1h")

	if err != nil {
		t.Fatalf("expected stopping the wait to succeed, got %v", err)
	}
	if !strings.Contains(out, "Waiting until") || !strings.Contains(out, "Stopped by user before the run started") {
		t.Errorf("unexpected output:\n%s", out)
	}
}
