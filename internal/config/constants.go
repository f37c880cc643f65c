package config

// DefaultDataDir is the default application data directory.
const DefaultDataDir = "./data"
