// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package mysql

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DefaultHost     = "localhost"
	DefaultPort     = 3306
	DefaultUser     = "root"
	DefaultDatabase = "numbat"
)

// Unknown database
const errNumberBadDb = 1049

// Config holds the MySQL connection settings. A non-empty Dsn is used as is
// and the other fields are ignored.
type Config struct {
	Dsn      string
	Host     string
	User     string
	Password string
	Database string
	SslMode  string
	TimeZone string
	Port     uint
}

// DSN returns the go-sql-driver connection string
func (c Config) DSN() string {
	if dsn := strings.TrimSpace(c.Dsn); dsn != "" {
		return dsn
	}
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Port == 0 {
		c.Port = DefaultPort
	}
	if c.User == "" {
		c.User = DefaultUser
	}
	if c.Database == "" {
		c.Database = DefaultDatabase
	}
	cfg := mysql.Config{
		User:   c.User,
		Passwd: c.Password,
		Net:    "tcp",
		Addr: fmt.Sprintf(
			"%s:%s",
			c.Host,
			strconv.FormatUint(uint64(c.Port), 10),
		),
		DBName:               c.Database,
		ParseTime:            true,
		AllowNativePasswords: true,
	}
	if c.TimeZone != "" {
		loc, err := time.LoadLocation(c.TimeZone)
		if err != nil {
			loc = time.UTC
		}
		cfg.Loc = loc
	}
	if c.SslMode != "" {
		cfg.TLSConfig = c.SslMode
	}
	return cfg.FormatDSN()
}

func openGorm(dsn string) (*gorm.DB, error) {
	return gorm.Open(
		gormmysql.Open(dsn),
		&gorm.Config{
			Logger:                 gormlogger.Discard,
			SkipDefaultTransaction: true,
			PrepareStmt:            true,
		},
	)
}

// Open connects to MySQL, creating the database when the server reports it
// missing
func Open(cfg Config) (*gorm.DB, error) {
	dsn := cfg.DSN()
	db, err := openGorm(dsn)
	if err != nil {
		var mysqlErr *mysql.MySQLError
		if !errors.As(err, &mysqlErr) || mysqlErr.Number != errNumberBadDb {
			return nil, err
		}
		if createErr := ensureDatabaseExists(dsn); createErr != nil {
			return nil, errors.Join(err, createErr)
		}
		db, err = openGorm(dsn)
		if err != nil {
			return nil, err
		}
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)
	return db, nil
}

func ensureDatabaseExists(dsn string) error {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return err
	}
	dbName := cfg.DBName
	if dbName == "" {
		return errors.New("no database name in DSN")
	}
	cfg.DBName = ""
	adminDb, err := openGorm(cfg.FormatDSN())
	if err != nil {
		return err
	}
	sqlAdminDb, err := adminDb.DB()
	if err != nil {
		return err
	}
	defer sqlAdminDb.Close()
	return adminDb.Exec(
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS `%s`", dbName),
	).Error
}
