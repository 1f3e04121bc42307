// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Command rcedit stamps version info, icons, manifests, string tables, and
// RCDATA blobs into a PE file's resource section.
package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	pe "github.com/rcedit-go/rcedit"
	"github.com/rcedit-go/rcedit/rcupdate"
	"github.com/spf13/cobra"
)

// usage is printed by -h/--help, matching spec.md section 6.1's option
// table, not cobra's generated usage (DisableFlagParsing below means cobra
// never builds one).
const usage = `Usage: rcedit <file> [options ...]

  -h, --help                                print this help and exit
  -svs,  --set-version-string KEY VALUE     set/append a version string
  -gvs,  --get-version-string KEY           print a version string and exit
  -sfv,  --set-file-version V               set FixedFileInfo file version
  -spv,  --set-product-version V            set FixedFileInfo product version
  -si,   --set-icon PATH                    replace the first icon bundle
  -srel, --set-requested-execution-level L  asInvoker|highestAvailable|requireAdministrator
  -am,   --application-manifest PATH        override manifest from file
         --srs, --set-resource-string ID V  update an RT_STRING slot
  -grs,  --get-resource-string ID           print an RT_STRING slot and exit
         --set-rcdata ID PATH               replace an RT_RCDATA entry
`

func main() {
	root := &cobra.Command{
		Use:                "rcedit <file> [options ...]",
		Short:              "Edit resources embedded in a PE file",
		DisableFlagParsing: true,
		SilenceUsage:       true,
		SilenceErrors:      true,
		Args:               cobra.MinimumNArgs(1),
		RunE:               run,
	}

	if err := root.Execute(); err != nil {
		fatal(err)
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "Fatal error: %s\n", err)
	os.Exit(1)
}

// run walks args manually instead of relying on cobra/pflag's flag parser,
// since several options (-svs, --srs, --set-rcdata) consume two trailing
// positional values rather than a single flag value.
func run(cmd *cobra.Command, args []string) error {
	if args[0] == "-h" || args[0] == "--help" {
		fmt.Print(usage)
		return nil
	}

	path := args[0]
	opts := args[1:]

	u := rcupdate.NewUpdater()
	if err := u.Load(path, pe.NewFileCollaborator()); err != nil {
		return err
	}

	i := 0
	next := func(flag string) (string, error) {
		i++
		if i >= len(opts) {
			return "", fmt.Errorf("%s requires an argument", flag)
		}
		return opts[i], nil
	}

	for ; i < len(opts); i++ {
		flag := opts[i]
		switch flag {
		case "-h", "--help":
			fmt.Print(usage)
			return nil

		case "-svs", "--set-version-string":
			key, err := next(flag)
			if err != nil {
				return err
			}
			value, err := next(flag)
			if err != nil {
				return err
			}
			if err := u.SetVersionString(nil, key, value); err != nil {
				return err
			}

		case "-gvs", "--get-version-string":
			key, err := next(flag)
			if err != nil {
				return err
			}
			value, err := u.GetVersionString(nil, key)
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil

		case "-sfv", "--set-file-version":
			v, err := next(flag)
			if err != nil {
				return err
			}
			v1, v2, v3, v4, err := parseVersion(v)
			if err != nil {
				return err
			}
			if err := u.SetFileVersion(nil, v1, v2, v3, v4); err != nil {
				return err
			}

		case "-spv", "--set-product-version":
			v, err := next(flag)
			if err != nil {
				return err
			}
			v1, v2, v3, v4, err := parseVersion(v)
			if err != nil {
				return err
			}
			if err := u.SetProductVersion(nil, v1, v2, v3, v4); err != nil {
				return err
			}

		case "-si", "--set-icon":
			icoPath, err := next(flag)
			if err != nil {
				return err
			}
			if err := u.SetIcon(icoPath); err != nil {
				return err
			}

		case "-srel", "--set-requested-execution-level":
			level, err := next(flag)
			if err != nil {
				return err
			}
			warning, err := u.SetRequestedExecutionLevel(level)
			if err != nil {
				return err
			}
			warn(warning)

		case "-am", "--application-manifest":
			manifestPath, err := next(flag)
			if err != nil {
				return err
			}
			warning, err := u.SetApplicationManifest(manifestPath)
			if err != nil {
				return err
			}
			warn(warning)

		case "--srs", "--set-resource-string":
			idStr, err := next(flag)
			if err != nil {
				return err
			}
			value, err := next(flag)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(idStr, 10, 32)
			if err != nil {
				return fmt.Errorf("%s: invalid resource string id %q: %w", flag, idStr, err)
			}
			if err := u.SetResourceString(nil, uint32(id), value); err != nil {
				return err
			}

		case "-grs", "--get-resource-string":
			idStr, err := next(flag)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(idStr, 10, 32)
			if err != nil {
				return fmt.Errorf("%s: invalid resource string id %q: %w", flag, idStr, err)
			}
			value, err := u.GetResourceString(nil, uint32(id))
			if err != nil {
				return err
			}
			fmt.Println(value)
			return nil

		case "--set-rcdata":
			idStr, err := next(flag)
			if err != nil {
				return err
			}
			dataPath, err := next(flag)
			if err != nil {
				return err
			}
			id, err := strconv.ParseUint(idStr, 10, 32)
			if err != nil {
				return fmt.Errorf("%s: invalid rcdata id %q: %w", flag, idStr, err)
			}
			if err := u.SetRcData(nil, uint32(id), dataPath); err != nil {
				return err
			}

		default:
			return fmt.Errorf("unrecognized option %q", flag)
		}
	}

	return u.Commit()
}

func warn(message string) {
	if message == "" {
		return
	}
	fmt.Fprintln(os.Stderr, message)
}

// parseVersion splits "v1[.v2[.v3[.v4]]]" into four WORDs, defaulting any
// missing trailing component to 0, matching the source's lenient dotted
// version parsing.
func parseVersion(s string) (v1, v2, v3, v4 uint16, err error) {
	parts := strings.Split(s, ".")
	if len(parts) == 0 || len(parts) > 4 {
		return 0, 0, 0, 0, fmt.Errorf("invalid version %q", s)
	}
	out := [4]uint16{}
	for i, p := range parts {
		n, err := strconv.ParseUint(p, 10, 16)
		if err != nil {
			return 0, 0, 0, 0, fmt.Errorf("invalid version component %q in %q: %w", p, s, err)
		}
		out[i] = uint16(n)
	}
	return out[0], out[1], out[2], out[3], nil
}
