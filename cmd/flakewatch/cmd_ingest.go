package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"flakewatch/internal/history"
	"flakewatch/internal/store"
)

var ingestFlags struct {
	dbPath   string
	patterns string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <records.json>",
	Short: "Load normalized execution records into the store",
	Long: `Ingest normalized test execution records from a JSON array or JSONL file.
Records are validated (status enum, non-negative duration) before anything
is written; a single bad record rejects the whole file.

Use --patterns to also load pattern → test mappings (JSON array of
{pattern_id, project_id, test_name}).`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	f := ingestCmd.Flags()
	f.StringVar(&ingestFlags.dbPath, "db", store.DefaultDBPath, "Store DB path")
	f.StringVar(&ingestFlags.patterns, "patterns", "", "Pattern mapping JSON file to load alongside records")
}

func runIngest(cmd *cobra.Command, args []string) error {
	records, err := readRecords(args[0])
	if err != nil {
		return err
	}
	for i := range records {
		if err := records[i].Validate(); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
	}

	st, err := store.Open(ingestFlags.dbPath)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	if err := st.InsertExecutions(records); err != nil {
		return fmt.Errorf("insert executions: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d execution record(s)\n", len(records))

	if ingestFlags.patterns != "" {
		data, err := os.ReadFile(ingestFlags.patterns)
		if err != nil {
			return fmt.Errorf("read patterns: %w", err)
		}
		var tests []store.PatternTest
		if err := json.Unmarshal(data, &tests); err != nil {
			return fmt.Errorf("parse patterns: %w", err)
		}
		if err := st.PutPatternTests(tests); err != nil {
			return fmt.Errorf("store patterns: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Mapped %d pattern test(s)\n", len(tests))
	}
	return nil
}

// readRecords parses a JSON array or JSONL file of execution records.
func readRecords(path string) ([]history.ExecutionRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read records: %w", err)
	}

	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var records []history.ExecutionRecord
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("parse records json: %w", err)
		}
		return records, nil
	}

	var records []history.ExecutionRecord
	sc := bufio.NewScanner(strings.NewReader(trimmed))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var r history.ExecutionRecord
		if err := json.Unmarshal([]byte(text), &r); err != nil {
			return nil, fmt.Errorf("parse records jsonl line %d: %w", line, err)
		}
		records = append(records, r)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scan records: %w", err)
	}
	return records, nil
}
