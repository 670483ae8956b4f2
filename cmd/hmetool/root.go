// Package main implements hmetool's cobra command tree: a package-level
// rootCmd with flag-bound subcommands, a logrus log-level flag parsed at
// RunE entry, and an Execute function the thin main.go delegates to.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hme-project/hme"
	"github.com/hme-project/hme/preset"
)

var (
	width           int
	height          int
	maxLayers       int
	minCoarsestSize int
	presetName      string
	numRefs         int
	workers         int
	logLevel        string
)

var rootCmd = &cobra.Command{
	Use:   "hmetool",
	Short: "Drive the hierarchical motion estimation engine from the command line",
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one synthetic picture through the HME pipeline and report the partition decision",
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			return fmt.Errorf("invalid log level %q: %w", logLevel, err)
		}
		logrus.SetLevel(level)

		p, err := preset.Parse(presetName)
		if err != nil {
			return err
		}

		enc, err := hme.Init(hme.InitParams{
			Width:            width,
			Height:           height,
			MaxLayers:        maxLayers,
			MinCoarsestSize:  minCoarsestSize,
			Preset:           p,
			Pad:              32,
			MaxActiveRefs:    numRefs,
			NumResultsPerRef: 2,
			Workers:          workers,
		})
		if err != nil {
			return fmt.Errorf("init: %w", err)
		}

		ctx := context.Background()
		if err := enc.AddInput(synthesizePicture(0, width, height)); err != nil {
			return fmt.Errorf("add_input current: %w", err)
		}

		refMap := make([]hme.ReferenceMapEntry, numRefs)
		for i := 0; i < numRefs; i++ {
			poc := int32(-(i + 1))
			if err := enc.AddInput(synthesizePicture(poc, width, height)); err != nil {
				return fmt.Errorf("add_input ref %d: %w", i, err)
			}
			refMap[i] = hme.ReferenceMapEntry{POC: poc, IsPast: true, WPWeight: 256}
		}

		fp := hme.FrameParams{
			Lambda: 16, LambdaQShift: 6,
			MVRangeX: 256, MVRangeY: 256,
			Preset: p,
		}
		if err := enc.ProcessFrameInit(ctx, refMap, fp); err != nil {
			return fmt.Errorf("process_frame_init: %w", err)
		}

		results, err := enc.ProcessFrame(ctx, 0, fp, workers)
		if err != nil {
			return fmt.Errorf("process_frame: %w", err)
		}
		printSummary(cmd, results)
		return nil
	},
}

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the quality presets and their search parameters",
	RunE: func(cmd *cobra.Command, args []string) error {
		table := preset.Default()
		for i := preset.Pristine; i <= preset.ExtremeSpeed25; i++ {
			params, err := table.Get(i)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(),
				"%-18s coarse_step=%d refine_grid=%-10s refine_iters=%d fpel_centres=%d merge_cands=%d satd_subpel=%v\n",
				params.Name, params.CoarseStep, params.RefineGrid, params.RefineMaxIterations,
				params.FpelRefineCentres, params.MergeCands, params.SATDSubpel)
		}
		return nil
	},
}

func printSummary(cmd *cobra.Command, results []hme.CTBResult) {
	totalPUs := 0
	var totalCost uint64
	for _, r := range results {
		totalPUs += len(r.PUs)
		for _, pu := range r.PUs {
			totalCost += uint64(pu.TotalCost)
		}
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "CTBs: %d\n", len(results))
	fmt.Fprintf(out, "PUs:  %d\n", totalPUs)
	if totalPUs > 0 {
		fmt.Fprintf(out, "Mean PU cost: %.1f\n", float64(totalCost)/float64(totalPUs))
	}
}

// synthesizePicture builds a deterministic textured plane so hmetool run has
// something with real gradients to search against without needing a file on
// disk; it is not meant to resemble natural video content.
func synthesizePicture(poc int32, width, height int) hme.InputDescriptor {
	data := make([]byte, width*height)
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			data[y*width+x] = byte((x*3 + y*5 + int(poc)*7) % 211)
		}
	}
	return hme.InputDescriptor{POC: poc, Data: data, Width: width, Height: height, Stride: width}
}

// Execute runs the root command, exiting with status 1 on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	runCmd.Flags().IntVar(&width, "width", 1920, "Picture width in luma pixels")
	runCmd.Flags().IntVar(&height, "height", 1080, "Picture height in luma pixels")
	runCmd.Flags().IntVar(&maxLayers, "layers", 4, "Maximum pyramid layers")
	runCmd.Flags().IntVar(&minCoarsestSize, "min-coarsest", 64, "Minimum coarsest-layer dimension in pixels")
	runCmd.Flags().StringVar(&presetName, "preset", "medium-speed", "Quality preset name")
	runCmd.Flags().IntVar(&numRefs, "refs", 1, "Number of synthetic reference pictures")
	runCmd.Flags().IntVar(&workers, "workers", 4, "Worker goroutines driving the row job queue")
	runCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(presetsCmd)
}
