package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/wasm-oj/wark/internal/alloc"
	"github.com/wasm-oj/wark/internal/host"
)

func runDoctor(cmd *cobra.Command) error {
	info := host.Diagnose()
	out := cmd.OutOrStdout()

	if jsonOutput {
		return outputDoctorJSON(out, &info)
	}
	return outputDoctorText(out, &info)
}

func outputDoctorText(w io.Writer, info *host.DiagnosticInfo) error {
	marks := [2]string{"-", "x"}
	if isTerminal(w) {
		marks = [2]string{"✗", "✓"}
	}

	// Header
	fmt.Fprintf(w, "memlimit Diagnostics\n")
	fmt.Fprintf(w, "====================\n\n")

	// System Information
	fmt.Fprintf(w, "System Information:\n")
	fmt.Fprintf(w, "  OS:            %s\n", info.OS)
	fmt.Fprintf(w, "  Arch:          %s\n", info.Arch)
	fmt.Fprintf(w, "  Go Version:    %s\n", info.GoVersion)
	fmt.Fprintf(w, "  Total Memory:  %s\n", formatLimit(info.TotalMemory))
	fmt.Fprintln(w)

	// Ceilings
	fmt.Fprintf(w, "Allocation Ceilings:\n")
	printLimit(w, marks, "Address space (RLIMIT_AS)", info.AddressSpaceLimit)
	printLimit(w, marks, "cgroup memory limit", info.CgroupMemoryLimit)
	printLimit(w, marks, "Go runtime memory limit", uint64(max(info.GoMemoryLimit, 0)))
	fmt.Fprintln(w)

	// Platform-specific information
	if info.OS == "linux" {
		fmt.Fprintf(w, "Linux-Specific Information:\n")
		fmt.Fprintf(w, "  Cgroups Version: %s\n", info.CgroupsVersion)
		if info.Overcommit != "" {
			fmt.Fprintf(w, "  Overcommit:      %s\n", info.Overcommit)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "Default Allocator:\n")
	if a, err := alloc.New(""); err == nil {
		fmt.Fprintf(w, "  %s\n", a.Name())
	}
	fmt.Fprintln(w)

	// Warnings
	if len(info.Warnings) > 0 {
		fmt.Fprintf(w, "Warnings:\n")
		for _, warning := range info.Warnings {
			fmt.Fprintf(w, "  [!] %s\n", warning)
		}
		fmt.Fprintln(w)
	}

	// Recommendations
	if len(info.Recommendations) > 0 {
		fmt.Fprintf(w, "Recommendations:\n")
		for _, r := range info.Recommendations {
			fmt.Fprintf(w, "  [*] %s\n", r)
		}
		fmt.Fprintln(w)
	}

	return nil
}

func outputDoctorJSON(w io.Writer, info *host.DiagnosticInfo) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(info)
}

// printLimit marks a ceiling as set or absent
func printLimit(w io.Writer, marks [2]string, name string, limit uint64) {
	status := marks[0]
	if limit > 0 {
		status = marks[1]
	}
	fmt.Fprintf(w, "  [%s] %-27s %s\n", status, name+":", formatLimit(limit))
}

func formatLimit(n uint64) string {
	if n == 0 {
		return "none"
	}
	return host.FormatBytes(n)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
