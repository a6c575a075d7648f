// Package config describes one driver run: the program to load, the
// functions to execute, and the engine parameters. A Config is normally
// assembled from command-line flags, optionally layered over an HCL
// config file.
package config
