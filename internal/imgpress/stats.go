package imgpress

import (
	"fmt"
	"strings"
	"sync"
)

// StatsAggregator accumulates per-file outcomes across a run. All
// mutation goes through its methods; it is safe for concurrent use and
// never loses an update.
type StatsAggregator struct {
	mu                   sync.Mutex
	processed            uint64
	errors               uint64
	totalOriginal        uint64
	totalCompressed      uint64
	totalDirectories     uint64
	processedDirectories uint64
}

// NewStatsAggregator creates an empty aggregator.
func NewStatsAggregator() *StatsAggregator {
	return &StatsAggregator{}
}

// Record folds one result into the totals. Failures still contribute
// their original size when it was read before the failure; only
// successes contribute to the compressed total.
func (s *StatsAggregator) Record(res CompressionResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totalOriginal += uint64(res.OriginalSize)
	if res.Success {
		s.processed++
		s.totalCompressed += uint64(res.CompressedSize)
	} else {
		s.errors++
	}
}

// AddDirectories raises the total directory count.
func (s *StatsAggregator) AddDirectories(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.totalDirectories += uint64(n)
}

// DirectoryProcessed marks one directory as fully enumerated.
func (s *StatsAggregator) DirectoryProcessed() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processedDirectories++
}

// Report is the final human-readable summary of a run.
type Report struct {
	Processed            uint64
	Errors               uint64
	TotalDirectories     uint64
	ProcessedDirectories uint64
	OriginalBytes        uint64
	CompressedBytes      uint64
	OriginalMB           float64
	CompressedMB         float64
	SavedMB              float64
	ReductionPercent     float64
}

// Finalize computes the derived figures. Reduction is zero when nothing
// was read.
func (s *StatsAggregator) Finalize() Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := Report{
		Processed:            s.processed,
		Errors:               s.errors,
		TotalDirectories:     s.totalDirectories,
		ProcessedDirectories: s.processedDirectories,
		OriginalBytes:        s.totalOriginal,
		CompressedBytes:      s.totalCompressed,
	}
	report.OriginalMB = float64(s.totalOriginal) / (1024 * 1024)
	report.CompressedMB = float64(s.totalCompressed) / (1024 * 1024)
	report.SavedMB = report.OriginalMB - report.CompressedMB
	if s.totalOriginal > 0 {
		report.ReductionPercent = (1 - float64(s.totalCompressed)/float64(s.totalOriginal)) * 100
	}
	return report
}

// String renders the report as a banner-framed summary.
func (r Report) String() string {
	var b strings.Builder
	line := strings.Repeat("=", 50)

	fmt.Fprintf(&b, "\n%s\n", line)
	fmt.Fprintf(&b, "COMPRESSION STATISTICS\n")
	fmt.Fprintf(&b, "%s\n", line)
	fmt.Fprintf(&b, "Images processed: %d\n", r.Processed)
	fmt.Fprintf(&b, "Errors: %d\n", r.Errors)
	fmt.Fprintf(&b, "Directories processed: %d\n", r.ProcessedDirectories)
	fmt.Fprintf(&b, "Total directories: %d\n", r.TotalDirectories)
	if r.OriginalBytes > 0 {
		fmt.Fprintf(&b, "Total original size: %.2f MB\n", r.OriginalMB)
		fmt.Fprintf(&b, "Total compressed size: %.2f MB\n", r.CompressedMB)
		fmt.Fprintf(&b, "Total reduction: %.1f%%\n", r.ReductionPercent)
		fmt.Fprintf(&b, "Space saved: %.2f MB\n", r.SavedMB)
	}
	fmt.Fprintf(&b, "%s\n", line)
	return b.String()
}
