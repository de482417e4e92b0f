package main

import (
	"errors"
	"fmt"
	"strings"
	"syscall"

	"golang.org/x/term"
)

var (
	readConfirmFunc = term.ReadPassword // mockable

	errResetAborted = errors.New("reset aborted")
)

// resetDB wipes all attendance records and device submissions, keeping courses
// and preferences. Meant for the start of a new term.
func (cli *commandLine) resetDB() error {
	fmt.Print("This permanently deletes ALL attendance records and device submissions.\nType 'yes' to proceed:")
	ans, err := readConfirmFunc(syscall.Stdin)
	fmt.Println()
	if err != nil {
		return err
	}
	if !strings.EqualFold(strings.TrimSpace(string(ans)), "yes") {
		return errResetAborted
	}

	tx, err := cli.db.Beginx()
	if err != nil {
		return err
	}
	for _, q := range []string{"DELETE FROM attendance_record", "DELETE FROM device_submission"} {
		if _, err = tx.Exec(q); err != nil {
			_ = tx.Rollback()
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		return err
	}
	fmt.Println("attendance data cleared")
	return nil
}
