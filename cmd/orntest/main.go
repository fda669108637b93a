package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

// orntest compares the assembly the compiler emits for each IR sample
// against a checked-in golden file. Goldens are regenerated with
// -generate-golden after an intentional output change.

type FileTestResult struct {
	File       string `json:"file"`
	Status     string `json:"status"` // PASS, FAIL, SKIP, ERROR
	SourceHash string `json:"source_hash,omitempty"`
	Message    string `json:"message,omitempty"`
	Diff       string `json:"diff,omitempty"`
}

var (
	compiler       = flag.String("compiler", "./orn", "Path to the compiler under test.")
	compilerArgs   = flag.String("compiler-args", "", "Extra arguments for the compiler (space-separated).")
	testFiles      = flag.String("test-files", "testdata/*.ir", "Glob pattern(s) for IR files to test (space-separated).")
	skipFiles      = flag.String("skip-files", "", "Files to skip (space-separated).")
	generateGolden = flag.Bool("generate-golden", false, "Rewrite the golden files instead of comparing.")
	outputJSON     = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	timeout        = flag.Duration("timeout", 5*time.Second, "Timeout for each compiler invocation.")
	jobs           = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose        = flag.Bool("v", false, "Enable verbose logging.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cBold   = "\x1b[1m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	tempDir, err := os.MkdirTemp("", "orntest-*")
	if err != nil {
		log.Fatalf("%s[ERROR]%s Failed to create temp directory: %v\n", cRed, cNone, err)
	}
	defer os.RemoveAll(tempDir)
	setupInterruptHandler(tempDir)

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Bad test-files pattern: %v\n", cRed, cNone, err)
	}
	files = filterSkipped(files, strings.Fields(*skipFiles))
	if len(files) == 0 {
		log.Fatalf("%s[ERROR]%s No test files matched %q\n", cRed, cNone, *testFiles)
	}

	results := runAll(files, tempDir)
	writeJSONReport(results)
	printSummary(results)
	for _, r := range results {
		if r.Status == "FAIL" || r.Status == "ERROR" {
			os.Exit(1)
		}
	}
}

func setupInterruptHandler(tempDir string) {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt)
	go func() {
		<-c
		os.RemoveAll(tempDir)
		fmt.Printf("\n%s[INTERRUPT]%s Test run cancelled. Cleaning up...\n", cYellow, cNone)
		os.Exit(1)
	}()
}

func goldenPath(sourceFile string) string {
	return strings.TrimSuffix(sourceFile, filepath.Ext(sourceFile)) + ".golden.s"
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

func runAll(files []string, tempDir string) []*FileTestResult {
	jobsCh := make(chan string)
	resultsCh := make(chan *FileTestResult)
	var wg sync.WaitGroup

	workers := *jobs
	if workers < 1 {
		workers = 1
	}
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for file := range jobsCh {
				resultsCh <- testFile(file, tempDir)
			}
		}()
	}
	go func() {
		for _, file := range files {
			jobsCh <- file
		}
		close(jobsCh)
		wg.Wait()
		close(resultsCh)
	}()

	var results []*FileTestResult
	for r := range resultsCh {
		results = append(results, r)
		if *verbose {
			log.Printf("%s: %s", r.File, r.Status)
		}
	}
	sort.Slice(results, func(i, j int) bool { return results[i].File < results[j].File })
	return results
}

func testFile(file, tempDir string) *FileTestResult {
	result := &FileTestResult{File: file}

	hash, err := hashFile(file)
	if err != nil {
		result.Status, result.Message = "ERROR", err.Error()
		return result
	}
	result.SourceHash = hash

	asm, compileErr := compile(file, filepath.Join(tempDir, hash+".s"))
	if compileErr != "" {
		result.Status, result.Message = "ERROR", compileErr
		return result
	}

	golden := goldenPath(file)
	if *generateGolden {
		if err := os.WriteFile(golden, []byte(asm), 0644); err != nil {
			result.Status, result.Message = "ERROR", err.Error()
			return result
		}
		result.Status, result.Message = "PASS", "golden regenerated"
		return result
	}

	want, err := os.ReadFile(golden)
	if err != nil {
		result.Status, result.Message = "SKIP", fmt.Sprintf("no golden file (%s)", golden)
		return result
	}
	if diff := cmp.Diff(string(want), asm); diff != "" {
		result.Status = "FAIL"
		result.Diff = diff
		return result
	}
	result.Status = "PASS"
	return result
}

// compile invokes the compiler on one IR file and returns the assembly it
// wrote, or a failure description.
func compile(sourceFile, outFile string) (asm, failure string) {
	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	args := append(strings.Fields(*compilerArgs), "-o", outFile, sourceFile)
	cmd := exec.CommandContext(ctx, *compiler, args...)
	out, err := cmd.CombinedOutput()
	if ctx.Err() == context.DeadlineExceeded {
		return "", "compiler timed out"
	}
	if err != nil {
		return "", fmt.Sprintf("compiler failed: %v\n%s", err, out)
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		return "", fmt.Sprintf("no output written: %v", err)
	}
	return string(data), ""
}

func printSummary(results []*FileTestResult) {
	counts := map[string]int{}
	for _, r := range results {
		counts[r.Status]++
	}

	fmt.Printf("\n%s--- Test Summary ---%s\n", cBold, cNone)
	for _, r := range results {
		switch r.Status {
		case "PASS":
			fmt.Printf("  %sPASS%s  %s\n", cGreen, cNone, r.File)
		case "SKIP":
			fmt.Printf("  %sSKIP%s  %s (%s)\n", cCyan, cNone, r.File, r.Message)
		case "FAIL":
			fmt.Printf("  %sFAIL%s  %s\n", cRed, cNone, r.File)
			if r.Diff != "" {
				fmt.Printf("%s\n", indent(r.Diff, "        "))
			}
		default:
			fmt.Printf("  %sERROR%s %s: %s\n", cRed, cNone, r.File, r.Message)
		}
	}
	fmt.Printf("\n%d passed, %d failed, %d skipped, %d errored (%d total)\n",
		counts["PASS"], counts["FAIL"], counts["SKIP"], counts["ERROR"], len(results))
}

func writeJSONReport(results []*FileTestResult) {
	data, err := json.MarshalIndent(results, "", "  ")
	if err != nil {
		log.Printf("%s[WARN]%s Could not marshal report: %v\n", cYellow, cNone, err)
		return
	}
	if err := os.WriteFile(*outputJSON, data, 0644); err != nil {
		log.Printf("%s[WARN]%s Could not write report: %v\n", cYellow, cNone, err)
	}
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var files []string
	for _, pattern := range strings.Fields(patterns) {
		matches, err := filepath.Glob(pattern)
		if err != nil {
			return nil, err
		}
		files = append(files, matches...)
	}
	return files, nil
}

func filterSkipped(files, skipped []string) []string {
	if len(skipped) == 0 {
		return files
	}
	var out []string
	for _, file := range files {
		skip := false
		for _, s := range skipped {
			if filepath.Base(file) == filepath.Base(s) {
				skip = true
				break
			}
		}
		if !skip {
			out = append(out, file)
		}
	}
	return out
}

func indent(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i := range lines {
		lines[i] = prefix + lines[i]
	}
	return strings.Join(lines, "\n")
}
