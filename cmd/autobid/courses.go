package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/abrezinsky/autobid/internal/models"
)

var (
	courseName       string
	courseLectures   string
	courseTutorials  string
	coursePracticals string
	exportPath       string
)

var coursesCmd = &cobra.Command{
	Use:     "courses",
	Aliases: []string{"course"},
	Short:   "Manage the course catalog",
}

var coursesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the catalog in registration order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(env *environment) error {
			courses, err := env.app.Catalog().ListCourses(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(courses) == 0 {
				fmt.Fprintln(out, "The catalog is empty")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "#\tCODE\tNAME\tSLOTS")
			for i, c := range courses {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", i+1, c.Code, c.Name, formatSlots(c))
			}
			return tw.Flush()
		})
	},
}

var coursesAddCmd = &cobra.Command{
	Use:   "add CODE",
	Short: "Append a course to the catalog",
	Long: `Add appends a course to the end of the catalog. Slot preferences are
comma separated slot numbers, most preferred first.

Example:
  autobid courses add CSC1001 --name "Programming" --lecture 2,1 --tutorial 5,3`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		course, err := courseFromFlags(args[0])
		if err != nil {
			return err
		}
		return withApp(cmd, func(env *environment) error {
			created, err := env.app.Catalog().AddCourse(cmd.Context(), course)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", created.Code, formatSlots(created))
			return nil
		})
	},
}

var coursesDeleteCmd = &cobra.Command{
	Use:     "delete CODE",
	Aliases: []string{"rm"},
	Short:   "Remove a course from the catalog",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(env *environment) error {
			if err := env.app.Catalog().DeleteCourse(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

var coursesMoveCmd = &cobra.Command{
	Use:   "move CODE DELTA",
	Short: "Move a course up (negative) or down (positive) in registration order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		delta, err := strconv.Atoi(args[1])
		if err != nil || delta == 0 {
			return fmt.Errorf("delta must be a non-zero integer, got %q", args[1])
		}
		return withApp(cmd, func(env *environment) error {
			if err := env.app.Catalog().MoveCourse(cmd.Context(), args[0], delta); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Moved %s by %d\n", args[0], delta)
			return nil
		})
	},
}

var coursesImportCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Replace the catalog with a timetable text file or JSON catalog",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(env *environment) error {
			courses, err := env.app.Catalog().ImportFile(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d courses from %s\n", len(courses), args[0])
			return nil
		})
	},
}

var coursesExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the catalog as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withApp(cmd, func(env *environment) error {
			if exportPath == "" || exportPath == "-" {
				return env.app.Catalog().Export(cmd.Context(), cmd.OutOrStdout())
			}
			if err := env.app.Catalog().ExportFile(cmd.Context(), exportPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.ErrOrStderr(), "Catalog written to %s\n", exportPath)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(coursesCmd)
	coursesCmd.AddCommand(coursesListCmd, coursesAddCmd, coursesDeleteCmd, coursesMoveCmd, coursesImportCmd, coursesExportCmd)

	coursesAddCmd.Flags().StringVarP(&courseName, "name", "n", "", "Course name")
	coursesAddCmd.Flags().StringVarP(&courseLectures, "lecture", "L", "", "Lecture slot preferences, e.g. 2,1")
	coursesAddCmd.Flags().StringVarP(&courseTutorials, "tutorial", "T", "", "Tutorial slot preferences")
	coursesAddCmd.Flags().StringVarP(&coursePracticals, "practical", "P", "", "Practical slot preferences")

	coursesExportCmd.Flags().StringVarP(&exportPath, "output", "o", "", "Output file (default stdout)")
}

// courseFromFlags builds a course from the add flags
func courseFromFlags(code string) (models.CourseSpec, error) {
	course := models.CourseSpec{Code: code, Name: courseName, Slots: map[models.ClassType]models.RankedSlots{}}
	for t, flag := range map[models.ClassType]string{
		models.Lecture:   courseLectures,
		models.Tutorial:  courseTutorials,
		models.Practical: coursePracticals,
	} {
		slots, err := parseSlots(flag)
		if err != nil {
			return course, fmt.Errorf("%s: %w", t.Name(), err)
		}
		if len(slots) > 0 {
			course.Slots[t] = slots
		}
	}
	return course, nil
}

// parseSlots parses a comma separated preference list such as "3,1,2"
func parseSlots(s string) (models.RankedSlots, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	var slots models.RankedSlots
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid slot number %q", part)
		}
		slots = append(slots, n)
	}
	return slots, slots.Validate()
}

// formatSlots renders preferences as "L 2,1  T 5"
func formatSlots(c models.CourseSpec) string {
	var parts []string
	for _, t := range models.ClassTypes {
		slots := c.Slots[t]
		if len(slots) == 0 {
			continue
		}
		nums := make([]string, len(slots))
		for i, n := range slots {
			nums[i] = strconv.Itoa(n)
		}
		parts = append(parts, string(t)+" "+strings.Join(nums, ","))
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, "  ")
}
