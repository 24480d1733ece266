// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scif-oss/rawfile"
	"github.com/scif-oss/rawfile/internal/hexscan"
)

func prettyPrint(v interface{}) string {
	buf, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<marshal error: %v>", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, buf, "", "\t"); err != nil {
		return string(buf)
	}
	return pretty.String()
}

func openFile(path string) *rawfile.File {
	f, err := rawfile.Open(path, nil)
	if err != nil {
		log.Fatalf("failed to open %s: %v", path, err)
	}
	return f
}

func newOpenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open [file]",
		Short: "Parse a RAW file and print its metadata",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f := openFile(args[0])
			defer f.Close()
			fmt.Println(prettyPrint(f.Metadata()))
			fmt.Printf("scans %d-%d, acquisition: %s, fingerprint: %016x\n",
				f.FirstScan(), f.LastScan(), f.AcquisitionType(), f.Fingerprint())
		},
	}
}

func newScanCmd() *cobra.Command {
	var fullArrays bool
	cmd := &cobra.Command{
		Use:   "scan [file] [scan-number]",
		Short: "Decode and print a single scan",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			f := openFile(args[0])
			defer f.Close()

			scanNumber, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				log.Fatalf("invalid scan number %q: %v", args[1], err)
			}
			scan, err := f.Scan(uint32(scanNumber))
			if err != nil {
				log.Fatalf("failed to decode scan %d: %v", scanNumber, err)
			}
			if !fullArrays {
				scan.CentroidMZ = truncatePreview(scan.CentroidMZ)
				scan.CentroidIntensity = truncatePreview(scan.CentroidIntensity)
				scan.ProfileMZ = truncatePreview(scan.ProfileMZ)
				scan.ProfileIntensity = truncatePreview(scan.ProfileIntensity)
			}
			fmt.Println(prettyPrint(scan))
		},
	}
	cmd.Flags().BoolVar(&fullArrays, "full", false, "print full centroid/profile arrays instead of a preview")
	return cmd
}

func truncatePreview(vals []float64) []float64 {
	const n = 10
	if len(vals) <= n {
		return vals
	}
	return vals[:n]
}

func newTICCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tic [file]",
		Short: "Print the total-ion-current chromatogram",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f := openFile(args[0])
			defer f.Close()
			fmt.Println(prettyPrint(f.TIC()))
		},
	}
}

func newBPCCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bpc [file]",
		Short: "Print the base-peak chromatogram",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f := openFile(args[0])
			defer f.Close()
			fmt.Println(prettyPrint(f.BPC()))
		},
	}
}

func newXICCmd() *cobra.Command {
	var ppm float64
	var ms1Only bool
	cmd := &cobra.Command{
		Use:   "xic [file] [m/z]",
		Short: "Extract an extracted-ion chromatogram for one m/z",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			f := openFile(args[0])
			defer f.Close()

			mz, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				log.Fatalf("invalid m/z %q: %v", args[1], err)
			}

			var chrom rawfile.Chromatogram
			if ms1Only {
				chrom, err = f.XICMS1(mz, ppm)
			} else {
				chrom, err = f.XIC(mz, ppm)
			}
			if err != nil {
				log.Fatalf("XIC failed: %v", err)
			}
			fmt.Println(prettyPrint(chrom))
		},
	}
	cmd.Flags().Float64Var(&ppm, "ppm", 10.0, "mass tolerance, in parts per million")
	cmd.Flags().BoolVar(&ms1Only, "ms1", false, "restrict extraction to MS1 scans")
	return cmd
}

func newDiagnoseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "diagnose [file]",
		Short: "Walk every parsing stage independently and report where a file fails",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				log.Fatalf("failed to read %s: %v", args[0], err)
			}
			report := rawfile.Diagnose(data)
			fmt.Printf("file size: %d bytes\n", report.FileSize)
			for _, stage := range report.Stages {
				status := "OK"
				if !stage.Success {
					status = "FAIL"
				}
				fmt.Printf("[%-4s] %-20s %s\n", status, stage.Name, stage.Detail)
			}
		},
	}
}

func newTrailerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trailer [file] [scan-number]",
		Short: "Print a scan's trailer extra fields",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			f := openFile(args[0])
			defer f.Close()

			scanNumber, err := strconv.ParseUint(args[1], 10, 32)
			if err != nil {
				log.Fatalf("invalid scan number %q: %v", args[1], err)
			}
			extra, err := f.TrailerExtra(uint32(scanNumber))
			if err != nil {
				log.Fatalf("failed to read trailer for scan %d: %v", scanNumber, err)
			}
			fmt.Println(prettyPrint(extra))
		},
	}
	return cmd
}

func newLocateCmd() *cobra.Command {
	var tolerance float64
	cmd := &cobra.Command{
		Use:   "locate [file] [f64-value]",
		Short: "Search a file for every occurrence of a known f64 value",
		Args:  cobra.ExactArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				log.Fatalf("failed to read %s: %v", args[0], err)
			}
			target, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				log.Fatalf("invalid value %q: %v", args[1], err)
			}
			hits := hexscan.FindF64(data, target, tolerance)
			fmt.Printf("found %d hit(s) for %.10f (+/-%g):\n", len(hits), target, tolerance)
			for _, hit := range hits {
				fmt.Printf("  offset 0x%08X (%10d): %.15f\n", hit.Offset, hit.Offset, hit.Value)
			}
		},
	}
	cmd.Flags().Float64Var(&tolerance, "tolerance", 1e-9, "absolute/relative match tolerance")
	return cmd
}

func newStreamsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "streams [file]",
		Short: "List the OLE2 compound-file streams in a RAW file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			f, err := os.Open(args[0])
			if err != nil {
				log.Fatalf("failed to open %s: %v", args[0], err)
			}
			defer f.Close()

			names, err := rawfile.ListOLE2Streams(f)
			if err != nil {
				log.Fatalf("failed to list streams: %v", err)
			}
			fmt.Println(strings.Join(names, "\n"))
		},
	}
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "rawdump",
		Short: "A Thermo RAW file parser",
		Long:  "A from-scratch Thermo Fisher RAW file reader, built for offline mass-spectrometry analysis.",
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version number",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("You are using version 0.1.0")
		},
	}

	rootCmd.AddCommand(
		versionCmd,
		newOpenCmd(),
		newScanCmd(),
		newTICCmd(),
		newBPCCmd(),
		newXICCmd(),
		newDiagnoseCmd(),
		newTrailerCmd(),
		newLocateCmd(),
		newStreamsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
