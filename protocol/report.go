package protocol

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/markkurossi/tabulate"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/stat"
)

const (
	PhaseLessThan = "LessThan"
	PhaseReLU     = "ReLU"
	PhaseReveal   = "Reveal"
)

var phases = []string{PhaseLessThan, PhaseReLU, PhaseReveal}

// Report collects the outcome of Run on one party.
type Report struct {
	Pid       int
	NumValues int
	BitWidth  int

	// Mismatches seen by this party, and summed over the computing parties
	LessThanMismatches uint64
	ReLUMismatches     uint64
	TotalMismatches    uint64

	BytesSent     uint64
	BytesReceived uint64

	durations map[string][]float64 // seconds, one entry per repetition
}

func NewReport(pid, numValues, bitWidth int) *Report {
	return &Report{
		Pid:       pid,
		NumValues: numValues,
		BitWidth:  bitWidth,
		durations: make(map[string][]float64),
	}
}

func (r *Report) AddDuration(phase string, d time.Duration) {
	r.durations[phase] = append(r.durations[phase], d.Seconds())
}

// Durations returns the recorded durations of a phase in seconds.
func (r *Report) Durations(phase string) []float64 {
	return r.durations[phase]
}

func (r *Report) OK() bool {
	return r.LessThanMismatches == 0 && r.ReLUMismatches == 0 && r.TotalMismatches == 0
}

func (r *Report) Print(w io.Writer) {
	fmt.Fprintf(w, "Party %d: %d values, %d-bit operands\n", r.Pid, r.NumValues, r.BitWidth)

	tab := tabulate.New(tabulate.UnicodeLight)
	tab.Header("Phase").SetAlign(tabulate.ML)
	tab.Header("Runs").SetAlign(tabulate.MR)
	tab.Header("Mean").SetAlign(tabulate.MR)
	tab.Header("StdDev").SetAlign(tabulate.MR)

	for _, phase := range phases {
		d := r.durations[phase]
		if len(d) == 0 {
			continue
		}
		row := tab.Row()
		row.Column(phase)
		row.Column(fmt.Sprintf("%d", len(d)))
		row.Column(seconds(stat.Mean(d, nil)))
		if len(d) > 1 {
			row.Column(seconds(stat.StdDev(d, nil)))
		} else {
			row.Column("-")
		}
	}

	row := tab.Row()
	row.Column("Sent").SetFormat(tabulate.FmtItalic)
	row.Column("")
	row.Column(fmt.Sprintf("%d B", r.BytesSent)).SetFormat(tabulate.FmtItalic)
	row.Column("")

	row = tab.Row()
	row.Column("Rcvd").SetFormat(tabulate.FmtItalic)
	row.Column("")
	row.Column(fmt.Sprintf("%d B", r.BytesReceived)).SetFormat(tabulate.FmtItalic)
	row.Column("")

	tab.Print(w)

	fmt.Fprintf(w, "Mismatches: LessThan %d, ReLU %d (all parties: %d)\n",
		r.LessThanMismatches, r.ReLUMismatches, r.TotalMismatches)
}

// WriteFile writes the printed report to filename.
func (r *Report) WriteFile(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return errors.Wrap(err, "create report")
	}
	r.Print(f)
	return errors.Wrap(f.Close(), "close report")
}

func seconds(s float64) string {
	return time.Duration(s * float64(time.Second)).Round(time.Microsecond).String()
}
