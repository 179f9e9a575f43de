package export

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
)

const (
	mysqlCreateJobsTmpl = `CREATE TABLE IF NOT EXISTS jobs (
		ID         BIGINT NOT NULL PRIMARY KEY AUTO_INCREMENT,
		RunID      VARCHAR(36) NOT NULL,
		ScanID     VARCHAR(64) NOT NULL,
		JobIndex   INTEGER,
		Kind       VARCHAR(8) NOT NULL,
		BandKey    VARCHAR(128) NOT NULL,
		Provider   VARCHAR(32) NOT NULL,
		Region     VARCHAR(64),
		FreqStart  BIGINT,
		FreqEnd    BIGINT,
		Target     BIGINT,
		Status     VARCHAR(16) NOT NULL,
		Message    TEXT,
		LogFile    TEXT,
		Artifact   TEXT,
		Started    BIGINT,
		Ended      BIGINT,
		INDEX jobs_scan (ScanID)
	);`
	mysqlCreateCellsTmpl = `CREATE TABLE IF NOT EXISTS cells (
		ID                BIGINT NOT NULL PRIMARY KEY AUTO_INCREMENT,
		RunID             VARCHAR(36) NOT NULL,
		ScanID            VARCHAR(64) NOT NULL,
		BandKey           VARCHAR(128) NOT NULL,
		Provider          VARCHAR(32) NOT NULL,
		CellID            INTEGER,
		Duplex            VARCHAR(8),
		AntennaPorts      VARCHAR(8),
		FreqCenter        BIGINT,
		FreqOffset        BIGINT,
		RxPower           DOUBLE,
		CPType            VARCHAR(8),
		NRB               INTEGER,
		PHICHDuration     VARCHAR(8),
		PHICHResource     VARCHAR(8),
		CrystalCorrection DOUBLE,
		Seen              BIGINT,
		INDEX cells_scan (ScanID)
	);`
)

var mysqlDialect = dialect{createJobs: mysqlCreateJobsTmpl, createCells: mysqlCreateCellsTmpl}

func openMySQL(dsn string) (*SQL, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("invalid MySQL DSN: %s", err)
	}
	db, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("unable to open MySQL DB %q: %s", cfg.Addr, err)
	}
	db.SetConnMaxLifetime(3 * time.Minute)
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	return &SQL{DB: db, dialect: mysqlDialect}, nil
}

// MySQLDSN builds a DSN for a TCP server, reading the password from passwordFile.
func MySQLDSN(addr, user, passwordFile, dbName string) (string, error) {
	cfg := mysql.NewConfig()
	cfg.User = user
	cfg.Net = "tcp"
	cfg.Addr = addr
	cfg.DBName = dbName
	if passwordFile != "" {
		pass, err := os.ReadFile(passwordFile)
		if err != nil {
			return "", fmt.Errorf("unable to read MySQL password file %q: %s", passwordFile, err)
		}
		cfg.Passwd = strings.TrimSpace(string(pass))
	}
	return cfg.FormatDSN(), nil
}
