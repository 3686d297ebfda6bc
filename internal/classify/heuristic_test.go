package classify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joescharf/triage/internal/models"
)

const zeroDivisionTrace = `
Traceback (most recent call last):
    File "<string>", line 38, in <module>
        main_application()                    ← Entry point
    File "<string>", line 30, in main_application
        results = process_data_batch(test_data)  ← Calls processor
    File "<string>", line 13, in process_data_batch
        avg = calculate_average(batch)        ← Calls calculator
    File "<string>", line 5, in calculate_average
        return total / count                  ← ERROR HERE
            ~~~~~~^~~~~~~
    ZeroDivisionError: division by zero
`

const goDividePanic = `panic: runtime error: integer divide by zero

goroutine 1 [running]:
main.average(...)
	/app/stats.go:9
main.summarize({0x0, 0x0, 0x0})
	/app/report.go:21 +0x1c
main.main()
	/app/main.go:30 +0x1d
exit status 2`

const goNilMapPanic = `panic: assignment to entry in nil map

goroutine 1 [running]:
main.main()
	/app/main.go:8 +0x2e
exit status 2`

func TestHeuristic_Classify(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		expected models.Complexity
	}{
		{"feature request", "Please add dark mode support", models.ComplexityNA},
		{"feature mentioning debug", "Add debug logging to the importer", models.ComplexityNA},
		{"feature mentioning errors loosely", "Show friendlier messages when uploads are rejected", models.ComplexityNA},
		{"multi-frame deterministic", zeroDivisionTrace, models.ComplexityMedium},
		{"single origin", "KeyError: 'user_id'", models.ComplexityLow},
		{"single frame", "Traceback (most recent call last):\n  File \"app.py\", line 3, in <module>\nValueError: bad input", models.ComplexityLow},
		{"chained java", `java.lang.IllegalStateException: cannot flush
	at com.acme.io.Writer.flush(Writer.java:88)
	at com.acme.app.Main.run(Main.java:12)
Caused by: java.io.IOException: disk full
	at com.acme.io.Disk.write(Disk.java:41)`, models.ComplexityHigh},
		{"timeout", `Traceback (most recent call last):
  File "client.py", line 10, in fetch
  File "pool.py", line 99, in acquire
TimeoutError: pool exhausted`, models.ComplexityHigh},
		{"go panic single frame", goNilMapPanic, models.ComplexityLow},
		{"go panic across frames", goDividePanic, models.ComplexityMedium},
		{"go deadlock", "fatal error: all goroutines are asleep - deadlock!\n\ngoroutine 1 [chan receive]:\nmain.main()\n\t/app/main.go:9 +0x2d\n", models.ComplexityHigh},
		{"goroutine dump without message", "goroutine 1 [running]:\nmain.main()\n\t/app/main.go:12 +0x1d\n", models.ComplexityHigh},
		{"feature naming an exception", "Please add a friendlier message when a ValueError is raised by the importer", models.ComplexityNA},
		{"framed feature request", "Project ID: web-42\n\nAnalyze: Please add dark mode support", models.ComplexityNA},
		{"defect without trace", "Login button is broken on Safari", models.ComplexityMedium},
		{"flaky defect without trace", "Checkout sometimes crashes under load", models.ComplexityHigh},
	}

	h := NewHeuristic()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := h.Classify(context.Background(), tt.text)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.Complexity)
			assert.NotEmpty(t, got.Reason)
		})
	}
}

func TestHeuristic_ZeroDivisionDetails(t *testing.T) {
	got, err := NewHeuristic().Classify(context.Background(), zeroDivisionTrace)
	require.NoError(t, err)
	assert.Equal(t, "ZeroDivisionError: division by zero", got.Title)
	assert.Contains(t, got.Reason, "deterministic")
	assert.Contains(t, got.Reason, "4 call frames")
}

func TestHeuristic_GoPanicDetails(t *testing.T) {
	got, err := NewHeuristic().Classify(context.Background(), goDividePanic)
	require.NoError(t, err)
	assert.Equal(t, "panic: runtime error: integer divide by zero", got.Title)
	assert.Contains(t, got.Reason, "3 call frames")

	got, err = NewHeuristic().Classify(context.Background(), goNilMapPanic+"\n")
	require.NoError(t, err)
	assert.Equal(t, "panic: assignment to entry in nil map", got.Title)
	assert.Contains(t, got.Reason, "single, localized origin")
}

func TestHeuristic_RecoveredPanicChain(t *testing.T) {
	text := "panic: boom [recovered]\n\tpanic: second failure\n\ngoroutine 1 [running]:\nmain.main()\n\t/app/main.go:5 +0x1\n"
	got, err := NewHeuristic().Classify(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, models.ComplexityHigh, got.Complexity)
	assert.Contains(t, got.Reason, "panic: boom -> panic: second failure")
}

func TestHeuristic_FramedPromptTitle(t *testing.T) {
	got, err := NewHeuristic().Classify(context.Background(), "Project ID: web-42\n\nAnalyze: Please add dark mode support\nfor the settings page")
	require.NoError(t, err)
	assert.Equal(t, "Please add dark mode support", got.Title)
	assert.Equal(t, "Please add dark mode support", got.Description)
}

func TestReportBody(t *testing.T) {
	assert.Equal(t, "Crash on save\nmore", reportBody("Project ID: p1\n\nAnalyze: Crash on save\nmore"))
	assert.Equal(t, "Crash on save", reportBody("Crash on save"))
	assert.Equal(t, "Analyze the logs", reportBody("Analyze the logs"))
}

func TestHeuristic_AmbiguousNotesUncertainty(t *testing.T) {
	got, err := NewHeuristic().Classify(context.Background(), "Export is not working")
	require.NoError(t, err)
	assert.Equal(t, models.ComplexityMedium, got.Complexity)
	assert.Contains(t, got.Reason, UncertainNote)
}

func TestHeuristic_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHeuristic().Classify(ctx, "anything")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFirstLine(t *testing.T) {
	assert.Equal(t, "hello", firstLine("\n\n  hello  \nworld", 72))
	assert.Equal(t, "", firstLine("   \n", 72))
	got := firstLine("abcdefghijklmnop", 10)
	assert.Equal(t, "abcdefg...", got)
}
