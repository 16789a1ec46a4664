package flags

import (
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/ruteri/feedsource/common"
	"github.com/ruteri/feedsource/config"
	"github.com/urfave/cli/v2"
)

func SetupLogger(cCtx *cli.Context) (log *slog.Logger) {
	logJSON := cCtx.Bool(LogJsonFlag.Name)
	logDebug := cCtx.Bool(LogDebugFlag.Name)
	logUID := cCtx.Bool(LogUidFlag.Name)
	logService := cCtx.String(LogServiceFlag.Name)

	logger := common.SetupLogger(&common.LoggingOpts{
		Debug:   logDebug,
		JSON:    logJSON,
		Service: logService,
		Version: common.Version,
	})

	if logUID {
		id := uuid.Must(uuid.NewRandom())
		logger = logger.With("uid", id.String())
	}
	return logger
}

// LoadConfig reads the file named by --config, or the nearest sleet.json
// above the working directory when the flag is empty.
func LoadConfig(cCtx *cli.Context) (*config.Document, error) {
	path := cCtx.String(ConfigFlag.Name)
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = config.FindConfigFile(wd); err != nil {
			return nil, err
		}
	}
	return config.Load(path)
}

var ConfigFlag = &cli.StringFlag{
	Name:    "config",
	Aliases: []string{"c"},
	EnvVars: []string{"SLEET_CONFIG"},
	Usage:   "path to the feed configuration, defaults to the nearest sleet.json",
}

var SourceFlag = &cli.StringFlag{
	Name:     "source",
	Aliases:  []string{"s"},
	EnvVars:  []string{"SLEET_SOURCE"},
	Required: true,
	Usage:    "name of the source entry to resolve",
}

var LogJsonFlag = &cli.BoolFlag{
	Name:  "log-json",
	Value: false,
	Usage: "log in JSON format",
}
var LogDebugFlag = &cli.BoolFlag{
	Name:  "log-debug",
	Value: false,
	Usage: "log debug messages",
}
var LogUidFlag = &cli.BoolFlag{
	Name:  "log-uid",
	Value: false,
	Usage: "generate a uuid and add to all log messages",
}
var LogServiceFlag = &cli.StringFlag{
	Name:  "log-service",
	Value: common.PackageName,
	Usage: "add 'service' tag to logs",
}

var LogFlags = []cli.Flag{LogJsonFlag, LogDebugFlag, LogUidFlag, LogServiceFlag}
