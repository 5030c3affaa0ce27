package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/RoGogDBD/data-logger/internal/config"
	"github.com/RoGogDBD/data-logger/internal/config/db"
	"github.com/RoGogDBD/data-logger/internal/crypto"
	"github.com/RoGogDBD/data-logger/internal/datalog"
	"github.com/RoGogDBD/data-logger/internal/handler"
	"github.com/RoGogDBD/data-logger/internal/publisher"
	"github.com/RoGogDBD/data-logger/internal/repository"
	"github.com/RoGogDBD/data-logger/internal/service"
	"github.com/RoGogDBD/data-logger/internal/version"
)

func main() {
	version.PrintBuildInfo()
	if err := run(); err != nil {
		log.Fatalf("server failed to start: %v", err)
	}
}

// pickString выбирает значение настройки: env/flag имеют приоритет,
// затем JSON конфигурация, затем значение по умолчанию.
func pickString(envOrFlag, jsonVal string) string {
	if envOrFlag != "" {
		return envOrFlag
	}
	return jsonVal
}

func run() error {
	logger, err := config.Initialize("info")
	if err != nil {
		return err
	}
	defer logger.Sync()

	dsnFlag := flag.String(config.FlagDatabaseDSN, "", "PostgreSQL DSN")
	storeIntervalFlag := flag.Int(config.FlagStoreInterval, 300, "Store interval in seconds")
	storeDirFlag := flag.String(config.FlagStoreDir, "data", "Directory for saved data files")
	restoreFlag := flag.Bool(config.FlagRestore, true, "Restore last session configuration at startup")
	keyFlag := flag.String(config.FlagKey, "", "Key for verifying request signatures")
	cryptoKeyFlag := flag.String(config.FlagCryptoKey, "", "Path to RSA private key for decrypting requests")
	auditFileFlag := flag.String(config.FlagAuditFile, "", "Path to audit log file")
	auditURLFlag := flag.String(config.FlagAuditURL, "", "URL of audit collector")
	publishURLFlag := flag.String(config.FlagPublishURL, "", "URL to publish datapoints to")
	lengthLimitFlag := flag.Int(config.FlagLengthLimit, 0, "Max stored datapoints per variable (0 = unlimited)")
	lagLimitFlag := flag.Float64(config.FlagLagLimit, 0, "Pause collection after this many seconds without updates (0 = disabled)")
	configFlag := flag.String(config.FlagConfig, "", "Path to JSON config file")
	addr := config.ParseAddressFlag()
	flag.Parse()

	jsonCfg, err := config.LoadServerJSONConfig(config.GetConfigFilePathWithFlag(*configFlag))
	if err != nil {
		return err
	}
	if jsonCfg.Address != "" {
		if err := addr.Set(jsonCfg.Address); err != nil {
			return err
		}
	}
	if err := config.EnvServer(addr, config.EnvAddress); err != nil {
		return err
	}

	dsn := pickString(config.GetEnvOrFlagString(config.EnvDatabaseDSN, *dsnFlag), jsonCfg.DatabaseDSN)
	storeDir := pickString(config.GetEnvOrFlagString(config.EnvStoreDir, *storeDirFlag), jsonCfg.StoreDir)
	key := pickString(config.GetEnvOrFlagString(config.EnvKey, *keyFlag), jsonCfg.Key)
	cryptoKey := pickString(config.GetEnvOrFlagString(config.EnvCryptoKey, *cryptoKeyFlag), jsonCfg.CryptoKey)
	auditFile := pickString(config.GetEnvOrFlagString(config.EnvAuditFile, *auditFileFlag), jsonCfg.AuditFile)
	auditURL := pickString(config.GetEnvOrFlagString(config.EnvAuditURL, *auditURLFlag), jsonCfg.AuditURL)
	publishURL := pickString(config.GetEnvOrFlagString(config.EnvPublishURL, *publishURLFlag), jsonCfg.PublishURL)

	storeInterval := config.GetEnvOrFlagInt(config.EnvStoreInterval, *storeIntervalFlag)
	if jsonCfg.StoreInterval != "" && storeInterval == 300 {
		storeInterval, err = config.ParseDuration(jsonCfg.StoreInterval)
		if err != nil {
			return err
		}
	}
	restore := config.GetEnvOrFlagBool(config.EnvRestore, *restoreFlag)
	if jsonCfg.Restore != nil {
		restore = restore && *jsonCfg.Restore
	}
	lengthLimit := config.GetEnvOrFlagInt(config.EnvLengthLimit, *lengthLimitFlag)
	if lengthLimit == 0 && jsonCfg.LengthLimit != nil {
		lengthLimit = *jsonCfg.LengthLimit
	}
	lagLimit := *lagLimitFlag
	if v, err := config.EnvFloat(config.EnvLagLimit); err == nil && v != 0 {
		lagLimit = v
	}

	var dbPool *pgxpool.Pool
	if dsn != "" {
		dbPool, err = db.InitDB(context.Background(), dsn)
		if err != nil {
			return err
		}
		defer dbPool.Close()
	} else {
		log.Println("No DSN provided, database features disabled")
	}

	core := datalog.NewCore(logger, lengthLimit)
	defer core.Close()

	h := handler.NewHandler(core, dbPool, storeDir)
	h.SetKey(key)

	if cryptoKey != "" {
		privateKey, err := crypto.LoadPrivateKey(cryptoKey)
		if err != nil {
			return err
		}
		h.SetPrivateKey(privateKey)
	}

	if auditFile != "" || auditURL != "" {
		audit := repository.NewAuditRecorder()
		if auditFile != "" {
			audit.Attach(repository.NewFileAuditObserver(auditFile))
		}
		if auditURL != "" {
			audit.Attach(repository.NewHTTPAuditObserver(auditURL))
		}
		h.SetAudit(audit)
	}

	if dbPool != nil {
		archive := repository.NewArchive(dbPool, logger)
		defer archive.Close()
		core.SubscribeDatapoint(archive)
		core.SubscribeConfig(archive)
	}

	if publishURL != "" {
		pub := publisher.New(publishURL, logger)
		defer pub.Close()
		core.SubscribeDatapoint(pub)
	}

	if lagLimit > 0 {
		lag := datalog.NewLagMonitor(core, time.Duration(lagLimit*float64(time.Second)), logger)
		lag.Start()
		defer lag.Stop()
		h.SetLagMonitor(lag)
	}

	if restore {
		cfg, err := repository.LoadConfig(repository.ConfigPath(storeDir))
		switch {
		case err == nil:
			if err := core.StartCollecting(cfg); err != nil {
				log.Printf("Failed to restore session: %v", err)
			}
		case !os.IsNotExist(err):
			log.Printf("Failed to restore configuration: %v", err)
		}
	}

	r := service.NewRouter(h, core, storeInterval, storeDir, logger)

	log.Printf("Using address: %s\n", addr.String())
	fmt.Println("Server started")
	return http.ListenAndServe(addr.String(), r)
}
