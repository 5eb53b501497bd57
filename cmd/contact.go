package main

import (
	"encoding/json"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contact-sync/internal/pipeline"
)

var (
	processContactID string
	processPhone     string
	processName      string

	sendContactID string

	gradeContactID string
	gradeValue     string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Validate, enrich and update a single contact",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context(), "process")
		if err != nil {
			return err
		}
		defer env.Close()

		var opts []pipeline.ProcessOption
		if processName != "" {
			opts = append(opts, pipeline.WithNameHint(processName))
		}
		res := env.Pipeline.ProcessContact(cmd.Context(), processContactID, processPhone, opts...)
		return printResult(os.Stdout, res)
	},
}

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Deliver one contact to the partner if its address is complete",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context(), "send")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Pipeline.SendContact(cmd.Context(), sendContactID)
		if err != nil {
			return err
		}
		return printResult(os.Stdout, res)
	},
}

var gradeCmd = &cobra.Command{
	Use:   "grade",
	Short: "Write a partner grade onto a contact",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline(cmd.Context(), "grade")
		if err != nil {
			return err
		}
		defer env.Close()

		return env.Pipeline.UpdateGrade(cmd.Context(), gradeContactID, gradeValue)
	},
}

type resultOutput struct {
	ContactID string `json:"contact_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
	Address   any    `json:"address,omitempty"`
}

// printResult writes res as JSON and returns its error for failed runs.
func printResult(w io.Writer, res *pipeline.ContactResult) error {
	out := resultOutput{
		ContactID: res.ContactID,
		Status:    string(res.Status),
		Message:   res.Message,
	}
	if res.Address != nil {
		out.Address = res.Address
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return eris.Wrap(err, "write result")
	}
	return res.Err
}

func init() {
	processCmd.Flags().StringVar(&processContactID, "contact-id", "", "CRM contact id")
	processCmd.Flags().StringVar(&processPhone, "phone", "", "phone number to look up")
	processCmd.Flags().StringVar(&processName, "name", "", "optional name hint for the lookup")
	_ = processCmd.MarkFlagRequired("contact-id")
	_ = processCmd.MarkFlagRequired("phone")

	sendCmd.Flags().StringVar(&sendContactID, "contact-id", "", "CRM contact id")
	_ = sendCmd.MarkFlagRequired("contact-id")

	gradeCmd.Flags().StringVar(&gradeContactID, "contact-id", "", "CRM contact id")
	gradeCmd.Flags().StringVar(&gradeValue, "grade", "", "grade to record")
	_ = gradeCmd.MarkFlagRequired("contact-id")
	_ = gradeCmd.MarkFlagRequired("grade")

	rootCmd.AddCommand(processCmd, sendCmd, gradeCmd)
}
