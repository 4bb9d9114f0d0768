package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"courseadmin/internal/application/dataset"
	"courseadmin/internal/application/projections"
	"courseadmin/internal/domain/reference"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Print the dashboard figures as JSON",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		res, err := projections.LoadDashboard(cmd.Context(), projections.GetDashboardDeps{
			Sources: newStores(client).Sources(),
		})
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), res)
	},
}

var listCmd = &cobra.Command{
	Use:       "list <kind>",
	Short:     "Print one entity list with resolved references as JSON",
	Long:      "Print one entity list. kind is one of courses, instructors, participants, rooms, enrollments.",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"courses", "instructors", "participants", "rooms", "enrollments"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind, err := reference.ParseKind(args[0])
		if err != nil {
			return err
		}
		client, err := newClient(nil)
		if err != nil {
			return err
		}
		ds, err := dataset.Load(cmd.Context(), newStores(client).Sources())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), rowsFor(kind, ds))
	},
}

func init() {
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(listCmd)
}

func rowsFor(kind reference.Kind, ds dataset.Dataset) any {
	switch kind {
	case reference.KindCourse:
		return projections.QueryCourseRows(ds.Courses, ds)
	case reference.KindInstructor:
		return projections.QueryInstructorRows(ds.Instructors)
	case reference.KindParticipant:
		return projections.QueryParticipantRows(ds.Participants)
	case reference.KindRoom:
		return projections.QueryRoomRows(ds.Rooms, ds.Rooms)
	}
	return projections.QueryEnrollmentRows(ds.Enrollments, ds)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
