package mysql

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// RunOptions adjusts a single CLI invocation.
type RunOptions struct {
	// Database overrides the connection's default database.
	Database string

	// IncludeHeader keeps the column-name header row in the output.
	IncludeHeader bool
}

// Runner executes a SQL statement against a MySQL server and returns
// the raw tab-separated output.
type Runner interface {
	Run(ctx context.Context, conn Conn, sql string, opts RunOptions) (string, error)
}

// CLIRunner shells out to the mysql client binary.
type CLIRunner struct {
	binary  string
	timeout time.Duration
}

// NewCLIRunner creates a runner for the given binary. A zero timeout
// means invocations are bounded only by the caller's context.
func NewCLIRunner(binary string, timeout time.Duration) *CLIRunner {
	if binary == "" {
		binary = "mysql"
	}
	return &CLIRunner{binary: binary, timeout: timeout}
}

func (r *CLIRunner) Run(ctx context.Context, conn Conn, sql string, opts RunOptions) (string, error) {
	if err := conn.Validate(); err != nil {
		return "", err
	}

	if r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	args := []string{"-h", conn.Host, "-P", strconv.Itoa(conn.Port), "-u", conn.User}
	if !opts.IncludeHeader {
		args = append(args, "-N")
	}
	args = append(args, "-B")

	db := opts.Database
	if db == "" {
		db = conn.Database
	}
	if db != "" {
		args = append(args, "-D", db)
	}
	args = append(args, "-e", sql)

	cmd := exec.CommandContext(ctx, r.binary, args...)
	cmd.Env = append(os.Environ(), "MYSQL_PWD="+conn.Password)

	output, err := cmd.CombinedOutput()
	if err != nil {
		if ctx.Err() != nil {
			return "", fmt.Errorf("mysql CLI timed out: %w", ctx.Err())
		}
		return "", fmt.Errorf("mysql CLI failed: %s", strings.TrimSpace(string(output)))
	}

	return string(output), nil
}

// nonEmptyLines splits raw CLI output into trimmed, non-empty lines.
func nonEmptyLines(raw string) []string {
	var lines []string
	for _, line := range strings.Split(raw, "\n") {
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// escapeString escapes single quotes for interpolation into a SQL
// string literal.
func escapeString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}
