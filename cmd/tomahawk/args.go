package main

import (
	"fmt"
	"os"
	"time"

	"tomahawk/internal/config"
)

const (
	cmdArtists = "artists"
	cmdAlbums  = "albums"
	cmdTracks  = "tracks"
)

type cliOptions struct {
	command    string
	artist     string
	album      string
	collection string
	sorted     bool
	sync       bool
	wait       time.Duration
}

// parseArgs parses command-line arguments and loads configuration.
// Priority: CLI flags > config file > defaults
func parseArgs() (config.Config, cliOptions, string, error) {
	args := os.Args[1:]
	opts := cliOptions{sorted: true, wait: 10 * time.Second}

	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	for _, arg := range args {
		if arg == "--help" || arg == "-h" {
			printUsage()
			os.Exit(0)
		}
		if arg == "--init-config" {
			return config.Config{}, opts, "", initConfigFile()
		}
	}

	var configPath string
	for i := 0; i < len(args); i++ {
		if args[i] == "--config" || args[i] == "-c" {
			if i+1 >= len(args) {
				return config.Config{}, opts, "", fmt.Errorf("--config requires a path argument")
			}
			configPath = args[i+1]
			break
		}
	}

	cfg, err := config.LoadConfigFile(configPath)
	if err != nil {
		return config.Config{}, opts, "", fmt.Errorf("failed to load config: %w", err)
	}
	if configPath == "" {
		configPath = config.FindConfigFile()
	}

	var positional []string
	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "--verbose", "-v":
			cfg.Verbose = true

		case "--parallel", "-p":
			if i+1 >= len(args) {
				return config.Config{}, opts, "", fmt.Errorf("--parallel requires a number argument")
			}
			i++
			var jobs int
			if _, err := fmt.Sscanf(args[i], "%d", &jobs); err != nil {
				return config.Config{}, opts, "", fmt.Errorf("invalid parallel jobs value: %s", args[i])
			}
			cfg.ParallelJobs = jobs

		case "--collection", "-C":
			if i+1 >= len(args) {
				return config.Config{}, opts, "", fmt.Errorf("--collection requires an id")
			}
			i++
			opts.collection = args[i]

		case "--wait", "-w":
			if i+1 >= len(args) {
				return config.Config{}, opts, "", fmt.Errorf("--wait requires a duration")
			}
			i++
			d, err := time.ParseDuration(args[i])
			if err != nil {
				return config.Config{}, opts, "", fmt.Errorf("invalid wait duration: %s", args[i])
			}
			opts.wait = d

		case "--unsorted":
			opts.sorted = false

		case "--sync":
			opts.sync = true

		case "--config", "-c":
			i++

		default:
			if len(arg) > 0 && arg[0] == '-' {
				return config.Config{}, opts, "", fmt.Errorf("unknown flag: %s", arg)
			}
			positional = append(positional, arg)
		}
	}

	if len(positional) == 0 {
		return config.Config{}, opts, "", fmt.Errorf("missing command, expected one of: artists, albums, tracks")
	}
	opts.command = positional[0]
	rest := positional[1:]

	switch opts.command {
	case cmdArtists:
		if len(rest) != 0 {
			return config.Config{}, opts, "", fmt.Errorf("artists takes no arguments")
		}
	case cmdAlbums:
		if len(rest) != 1 {
			return config.Config{}, opts, "", fmt.Errorf("usage: albums <artist>")
		}
		opts.artist = rest[0]
	case cmdTracks:
		if len(rest) != 2 {
			return config.Config{}, opts, "", fmt.Errorf("usage: tracks <artist> <album>")
		}
		opts.artist, opts.album = rest[0], rest[1]
	default:
		return config.Config{}, opts, "", fmt.Errorf("unknown command: %s", opts.command)
	}

	if opts.collection == "" && len(cfg.Collections) > 0 {
		opts.collection = cfg.Collections[0].ID
	}

	return cfg, opts, configPath, nil
}

// initConfigFile creates a new config file with default values
func initConfigFile() error {
	path := config.GetDefaultConfigPath()

	if _, err := os.Stat(path); err == nil {
		fmt.Printf("Config file already exists at: %s\n", path)
		fmt.Println("Delete it first if you want to recreate it.")
		os.Exit(0)
	}

	cfg := config.DefaultConfig()

	if err := config.SaveConfigFile(cfg, path); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}

	fmt.Printf("Created default config file at: %s\n", path)
	fmt.Println("\nEdit it to describe your collections:")
	fmt.Println("  collections[].source: local (needs path) or remote (needs url)")
	fmt.Println("  collections[].requests_per_second: rate limit for remote resolvers")
	fmt.Println("  parallel_jobs: 1-32 (resolver jobs running at once)")
	fmt.Println("  job_timeout: e.g. 30s")
	fmt.Println("  cache_dir: where resolver responses are kept (empty = memory only)")

	os.Exit(0)
	return nil
}

// printUsage displays the help message
func printUsage() {
	fmt.Println("tomahawk - Browse the artists, albums and tracks your resolvers know about")
	fmt.Println()
	fmt.Println("Usage: tomahawk [options] <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  artists                    List artists")
	fmt.Println("  albums <artist>            List albums of an artist")
	fmt.Println("  tracks <artist> <album>    List tracks of an album")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  -C, --collection <id>      Collection to query (default: first configured)")
	fmt.Println("  -w, --wait <duration>      How long to wait for a fetch (default: 10s)")
	fmt.Println("      --unsorted             Keep resolver order")
	fmt.Println("      --sync                 Run resolver jobs inline instead of in the pool")
	fmt.Println("  -p, --parallel <n>         Number of parallel resolver jobs (1-32)")
	fmt.Println("  -v, --verbose              Debug logging")
	fmt.Println("  -c, --config <path>        Path to config file")
	fmt.Println("  -h, --help                 Show this help message")
	fmt.Println()
	fmt.Println("Configuration:")
	fmt.Println("  --init-config              Create a default config file")
	fmt.Println()
	fmt.Println("Config file locations (checked in order):")
	fmt.Println("  ./tomahawk.yaml")
	fmt.Println("  ~/.config/tomahawk/config.yaml")
	fmt.Println("  ~/.tomahawk.yaml")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tomahawk artists")
	fmt.Println("  tomahawk -C web albums \"Boards of Canada\"")
	fmt.Println("  tomahawk tracks Portishead Dummy")
}
