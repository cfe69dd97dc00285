package kv

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/ValentinKolb/tkv/cmd/util"
	"github.com/ValentinKolb/tkv/rpc/client"
	"github.com/ValentinKolb/tkv/rpc/common"
	"github.com/rcrowley/go-metrics"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	perfTestCmd = &cobra.Command{
		Use:     "perf",
		Short:   "Performance testing tool for tKV nodes",
		Long:    "",
		RunE:    runPerf,
		PreRunE: processPerfConfig,
	}
	perfTableName        = "__perf"
	perfLargeValueSizeKB = 100
	perfNumThreads       = 10
	perfKeySpread        = 100
	perfOpsPerThread     = 5000
	perfSkip             = make([]string, 0)
)

func init() {
	// add flags
	key := "skip"
	perfTestCmd.Flags().String(key, "", util.WrapString("Benchmarks to skip (comma separated - e.g. write,read)"))
	key = "threads"
	perfTestCmd.Flags().Int(key, 10, util.WrapString("Number of concurrent sessions to use for the benchmark"))
	key = "ops"
	perfTestCmd.Flags().Int(key, 5000, util.WrapString("Number of operations per session and benchmark"))
	key = "large-value-size"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How large the value for the write-large test should be (in KB)"))
	key = "keys"
	perfTestCmd.Flags().Int(key, 100, util.WrapString("How many different keys to use for the tests"))
	key = "csv"
	perfTestCmd.Flags().String(key, "", util.WrapString("Optional path to save benchmark results as CSV"))
}

func processPerfConfig(cmd *cobra.Command, _ []string) error {
	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}

	// Read the configuration from the command line flags and environment variables
	perfLargeValueSizeKB = viper.GetInt("large-value-size")
	perfKeySpread = viper.GetInt("keys")
	perfNumThreads = viper.GetInt("threads")
	perfOpsPerThread = viper.GetInt("ops")
	perfSkip = strings.Split(viper.GetString("skip"), ",")

	return nil
}

// perfResult is the outcome of one benchmark, a nil timer means skipped
type perfResult struct {
	timer   metrics.Timer
	elapsed time.Duration
}

func runPerf(_ *cobra.Command, _ []string) error {

	fmt.Println("Performance testing tool for tKV nodes")

	// Print configuration
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println(util.GetClientConfig().String())
	fmt.Printf("Threads: %d\n", perfNumThreads)
	fmt.Printf("Ops per thread: %d\n", perfOpsPerThread)
	fmt.Println()

	// The benchmarks run against a dedicated table
	tableID, err := rpcSession.CreateTable(perfTableName, 1)
	if err != nil {
		return err
	}
	defer func() {
		_ = rpcSession.DropTable(perfTableName)
	}()

	fmt.Println("starting tests...")

	value := []byte("test")
	largeValue := make([]byte, perfLargeValueSizeKB*1024)

	// Create results map
	results := make(map[string]perfResult)

	benchmarks := []struct {
		name string
		op   func(s *client.Session, i int) error
	}{
		{"write", func(s *client.Session, i int) error {
			_, err := s.Write(tableID, perfKey("write", i), value, nil)
			return err
		}},
		{"write-large", func(s *client.Session, i int) error {
			_, err := s.Write(tableID, perfKey("write-large", i), largeValue, nil)
			return err
		}},
		{"read", func(s *client.Session, i int) error {
			_, _, err := s.Read(tableID, perfKey("write", i), nil)
			return err
		}},
		{"read-miss", func(s *client.Session, i int) error {
			// a miss is the expected outcome here
			_, _, _ = s.Read(tableID, perfKey("missing", i), nil)
			return nil
		}},
		{"incr", func(s *client.Session, i int) error {
			_, _, err := s.IncrementInt64(tableID, perfKey("incr", i), 1, nil)
			return err
		}},
		{"multi-write", func(s *client.Session, i int) error {
			objects := make([]*client.MultiWriteObject, 10)
			for j := range objects {
				objects[j] = &client.MultiWriteObject{
					TableID: tableID,
					Key:     perfKey("multi", i*10+j),
					Value:   value,
				}
			}
			return s.MultiWrite(objects)
		}},
		{"mixed", func(s *client.Session, i int) error {
			key := perfKey("mixed", i)
			var err error
			switch i % 4 {
			case 0:
				_, err = s.Write(tableID, key, value, nil)
			case 1:
				_, _, _ = s.Read(tableID, key, nil)
			case 2:
				_, _ = s.Remove(tableID, key, nil)
			case 3:
				_, _, err = s.IncrementInt64(tableID, key, 1, nil)
			}
			return err
		}},
		{"remove", func(s *client.Session, i int) error {
			_, err := s.Remove(tableID, perfKey("write", i), nil)
			return err
		}},
	}

	for _, b := range benchmarks {
		result, err := runBenchmark(b.name, b.op)
		if err != nil {
			return err
		}
		results[b.name] = result
		printResult(b.name, result)
	}

	// Write results to csv if specified
	if csvPath := viper.GetString("csv"); csvPath != "" {
		fmt.Printf("\nExporting results to CSV: %s\n", csvPath)
		if err := writeResultsToCSV(csvPath, results, util.GetClientConfig()); err != nil {
			return fmt.Errorf("failed to export results to CSV: %v", err)
		}
		fmt.Println("Export complete")
	}

	return nil
}

// --------------------------------------------------------------------------
// Helper
// --------------------------------------------------------------------------

// runBenchmark runs op from perfNumThreads sessions in parallel and
// samples every call into a shared timer. Sessions are not safe for
// concurrent use, so each thread connects its own.
func runBenchmark(name string, op func(s *client.Session, i int) error) (perfResult, error) {
	if shouldSkip(name) {
		return perfResult{}, nil
	}

	config := util.GetClientConfig()

	sessions := make([]*client.Session, perfNumThreads)
	for i := range sessions {
		t, err := util.GetClientTransport()
		if err != nil {
			return perfResult{}, err
		}
		s, err := client.Connect(*config, t)
		if err != nil {
			return perfResult{}, err
		}
		sessions[i] = s
	}
	defer func() {
		for _, s := range sessions {
			_ = s.Disconnect()
		}
	}()

	timer := metrics.NewTimer()
	defer timer.Stop()

	var wg sync.WaitGroup
	start := time.Now()
	for threadID, s := range sessions {
		wg.Add(1)
		go func(threadID int, s *client.Session) {
			defer wg.Done()
			base := threadID * perfOpsPerThread
			for i := 0; i < perfOpsPerThread; i++ {
				opStart := time.Now()
				if err := op(s, base+i); err != nil {
					fmt.Printf("(%s) - error: %v\n", name, err)
				}
				timer.UpdateSince(opStart)
			}
		}(threadID, s)
	}
	wg.Wait()

	return perfResult{timer: timer, elapsed: time.Since(start)}, nil
}

func shouldSkip(test string) bool {
	// Check if the test is in the skip list
	for _, skip := range perfSkip {
		if test == skip {
			return true
		}
	}
	return false
}

// perfKey maps an operation index onto the configured key spread
func perfKey(prefix string, i int) []byte {
	return []byte(fmt.Sprintf("%s-%s-%d", perfTableName, prefix, i%perfKeySpread))
}

// printResult prints the result of a benchmark test in a formatted way
func printResult(test string, result perfResult) {
	if result.timer == nil {
		fmt.Printf("%-20sskipped\n", test)
		return
	}

	t := result.timer
	opsPerSec := float64(t.Count()) / result.elapsed.Seconds()

	fmt.Printf("%-20smean=%s\tp50=%s\tp99=%s\t%.0f ops/sec\n",
		test,
		time.Duration(t.Mean()),
		time.Duration(t.Percentile(0.5)),
		time.Duration(t.Percentile(0.99)),
		opsPerSec,
	)
}

// writeResultsToCSV writes benchmark results to a CSV file
func writeResultsToCSV(csvPath string, results map[string]perfResult, config *common.ClientConfig) error {
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create CSV file: %v", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	// Write header
	header := []string{
		"Test", "Count", "MeanNs", "P50Ns", "P99Ns", "OpsPerSec", "Skipped",
		"Endpoints", "TimeoutSec", "RetryCount", "ConnectionsPerEndpoint",
		"Transport", "Threads", "OpsPerThread", "LargeValueSizeKB", "Keys Count",
	}
	if err := writer.Write(header); err != nil {
		return fmt.Errorf("failed to write CSV header: %v", err)
	}

	// Write test results
	for test, result := range results {
		var count int64
		var meanNs, p50Ns, p99Ns, opsPerSec float64
		skipped := "true"

		if result.timer != nil {
			skipped = "false"
			count = result.timer.Count()
			meanNs = result.timer.Mean()
			p50Ns = result.timer.Percentile(0.5)
			p99Ns = result.timer.Percentile(0.99)
			opsPerSec = float64(count) / result.elapsed.Seconds()
		}

		row := []string{
			test,
			strconv.FormatInt(count, 10),
			fmt.Sprintf("%.0f", meanNs),
			fmt.Sprintf("%.0f", p50Ns),
			fmt.Sprintf("%.0f", p99Ns),
			fmt.Sprintf("%.0f", opsPerSec),
			skipped,
			strings.Join(config.Transport.Endpoints, ";"),
			strconv.FormatInt(config.TimeoutSecond, 10),
			strconv.Itoa(config.Transport.RetryCount),
			strconv.Itoa(config.Transport.ConnectionsPerEndpoint),
			viper.GetString("transport"),
			strconv.Itoa(perfNumThreads),
			strconv.Itoa(perfOpsPerThread),
			strconv.Itoa(perfLargeValueSizeKB),
			strconv.Itoa(perfKeySpread),
		}

		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write row for test %s: %v", test, err)
		}
	}

	return nil
}
