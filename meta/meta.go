// meta/meta.go
package meta

// PARTITIONS is the default number of partitions per dataset.
const PARTITIONS = 8

// ATTEMPTS is how many times a failed partition task is tried before the round fails.
const ATTEMPTS = 3

// SHARDS is the default number of output files.
const SHARDS = 4

// OUTPUT_DIR is the default output location.
const OUTPUT_DIR = "out"

// GAME, WIDTH, HEIGHT and WIN_LENGTH describe the default ruleset.
const GAME = "connect4"
const WIDTH = 4
const HEIGHT = 4
const WIN_LENGTH = 4
