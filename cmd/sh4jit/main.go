// Command sh4jit drives the dynamic translation core from the command
// line: run a toy guest program through the dispatch loop, dump code
// cache statistics, or pretty-print a built IL block.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/washdc/sh4jit/internal/bench"
	"github.com/washdc/sh4jit/pkg/il"
	"github.com/washdc/sh4jit/pkg/jit"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "sh4jit",
		Short: "Drive the SH-4 dynamic translation core",
	}
	root.AddCommand(runCmd(), cacheStatsCmd(), disasmILCmd(), benchCmd())
	return root
}

// runCmd executes a toy chained-jump program through the dispatch loop
// and prints the resulting guest PC and cache statistics, the CLI analogue
// of scenario S6.
func runCmd() *cobra.Command {
	var startPC string
	var steps int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run a toy chained-jump program through the JIT and print the final PC",
		RunE: func(cmd *cobra.Command, args []string) error {
			pc, err := parseImmediate(startPC)
			if err != nil {
				return fmt.Errorf("invalid --pc: %w", err)
			}

			s, err := jit.New(jit.Config{
				OnCompile: func(bd *il.Builder, pc uint32) {
					bd.Jump(pc + 4)
				},
			})
			if err != nil {
				return err
			}
			defer s.Close()

			cur := uint32(pc)
			for i := 0; i < steps; i++ {
				cur, err = s.Entry(cur)
				if err != nil {
					return err
				}
			}
			st := s.CacheStats()
			fmt.Printf("final pc=%#x live_entries=%d tree_height=%d\n", cur, st.LiveEntries, st.TreeHeight)
			return nil
		},
	}
	cmd.Flags().StringVar(&startPC, "pc", "0x8c010000", "starting guest program counter")
	cmd.Flags().IntVar(&steps, "steps", 4, "number of dispatch steps to run")
	return cmd
}

// cacheStatsCmd builds a synthetic cache by inserting a run of
// sequential keys and dumps the resulting P1-P3 diagnostics.
func cacheStatsCmd() *cobra.Command {
	var count int
	cmd := &cobra.Command{
		Use:   "cache-stats",
		Short: "Build a synthetic code cache and print its invariants",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := jit.New(jit.Config{
				OnCompile: func(bd *il.Builder, pc uint32) { bd.Jump(pc + 4) },
			})
			if err != nil {
				return err
			}
			defer s.Close()
			for i := 0; i < count; i++ {
				if _, err := s.Entry(uint32(i * 4)); err != nil {
					return err
				}
			}
			st := s.CacheStats()
			fmt.Printf("live_entries=%d tree_height=%d old_roots=%d balanced=%v\n",
				st.LiveEntries, st.TreeHeight, st.OldRootCount, st.Balanced)
			return nil
		},
	}
	cmd.Flags().IntVar(&count, "count", 16, "number of distinct blocks to install")
	return cmd
}

// disasmILCmd builds a single block from a tiny textual mini-language
// and pretty-prints its instructions, mirroring the teacher's
// assembly-line parsing helpers.
func disasmILCmd() *cobra.Command {
	var program string
	cmd := &cobra.Command{
		Use:   "disasm-il",
		Short: "Build and pretty-print an IL block from a simple program",
		RunE: func(cmd *cobra.Command, args []string) error {
			blk, err := buildFromProgram(program)
			if err != nil {
				return err
			}
			for i := 0; i < blk.Len(); i++ {
				in := blk.Inst(i)
				fmt.Printf("%3d: %s\n", i, in.Op)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&program, "program", "const:42;jump:0x8c010000", "semicolon-separated const:/jump: mini-program")
	return cmd
}

// buildFromProgram parses a tiny textual format ("const:V", "jump:PC")
// into an IL block, in the spirit of the teacher's parseAssembly
// helper that splits a colon-delimited instruction stream.
func buildFromProgram(program string) (*il.Block, error) {
	bd := il.NewBuilder()
	slot := bd.AllocGeneral()
	for _, tok := range strings.Split(program, ";") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		parts := strings.SplitN(tok, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("malformed instruction %q", tok)
		}
		switch parts[0] {
		case "const":
			v, err := parseImmediate(parts[1])
			if err != nil {
				return nil, err
			}
			bd.SetConst(slot, v)
		case "jump":
			pc, err := parseImmediate(parts[1])
			if err != nil {
				return nil, err
			}
			bd.Jump(uint32(pc))
		default:
			return nil, fmt.Errorf("unknown instruction %q", parts[0])
		}
	}
	return bd.Finish(true)
}

// benchCmd drives a pool of independently-owned JIT instances in
// parallel and prints aggregate dispatch throughput, adapted from the
// teacher's worker-pool progress-reporting shape.
func benchCmd() *cobra.Command {
	var workers, tasks, steps int
	var report time.Duration

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Run parallel JIT dispatch workers and report throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			p := bench.NewPool(workers)
			ts := make([]bench.Task, tasks)
			for i := range ts {
				ts[i] = bench.Task{StartPC: uint32(i * 0x1000), Steps: steps}
			}
			p.Run(ts, report, false)
			dispatched, faulted := p.Stats()
			fmt.Printf("total dispatched=%d faulted=%d\n", dispatched, faulted)
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "worker goroutines (0 = NumCPU)")
	cmd.Flags().IntVar(&tasks, "tasks", 64, "number of independent JIT instances to run")
	cmd.Flags().IntVar(&steps, "steps", 1000, "dispatch steps per task")
	cmd.Flags().DurationVar(&report, "report", 10*time.Second, "progress report interval")
	return cmd
}

// parseImmediate accepts 0x-prefixed hex or plain decimal, mirroring
// the teacher's numeric-literal parsing helper.
func parseImmediate(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return strconv.ParseUint(s[2:], 16, 64)
	}
	return strconv.ParseUint(s, 10, 64)
}
