/*
Package cli provides command-line interface utilities for the aegis command.

The cli package includes output formatters, typed command errors, and
signal handling helpers shared by the aegis subcommands.

Output Formatting:

Commands that support machine-readable output use the formatter:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, result); err != nil {
		return err
	}

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx := cli.SetupSignalHandler()
	// Use ctx for operations that should be cancelled on shutdown
*/
package cli
