package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang/glog"

	"github.com/hb9tf/cellscan/band"
	"github.com/hb9tf/cellscan/export"
	"github.com/hb9tf/cellscan/scan"
)

var (
	listen   = flag.String("listen", ":8443", "")
	certFile = flag.String("certFile", "", "Path of the file containing the certificate (including the chained intermediates and root) for the TLS connection.")
	keyFile  = flag.String("keyFile", "", "Path of the file containing the key for the TLS connection.")
	driver   = flag.String("driver", "sqlite3", "History store to use (one of: sqlite3, mysql)")
	bandFile = flag.String("bands", "", "JSON band table to serve. Empty serves the built-in table.")

	// SQLite
	dsn = flag.String("dsn", "/tmp/cellscan.db", "File path of the sqlite DB file to use.")

	// MySQL
	mysqlServer       = flag.String("mysqlServer", "127.0.0.1:3306", "MySQL TCP server endpoint to connect to (IP/DNS and port).")
	mysqlUser         = flag.String("mysqlUser", "", "MySQL DB user.")
	mysqlPasswordFile = flag.String("mysqlPasswordFile", "", "Path to the file containing the password for the MySQL user.")
	mysqlDBName       = flag.String("mysqlDBName", "cellscan", "Name of the DB to use.")
)

const apiPrefix = "/cellscan/v1"

// Store is the part of the history store the server reads and writes.
type Store interface {
	Export(ctx context.Context, s *scan.Summary) error
	Scans(ctx context.Context) ([]export.ScanRecord, error)
	Jobs(ctx context.Context, scanID string) ([]export.JobRecord, error)
	Cells(ctx context.Context, scanID string) ([]scan.Cell, error)
}

type CellscanServer struct {
	store Store
	bands *band.Table
}

func (s *CellscanServer) collectHandler(c *gin.Context) {
	sum := &scan.Summary{}
	if err := c.ShouldBindJSON(sum); err != nil {
		c.String(http.StatusBadRequest, err.Error())
		return
	}
	if sum.ScanID == "" || sum.RunID == "" {
		c.String(http.StatusBadRequest, "summary without scan or run id")
		return
	}
	if err := s.store.Export(c.Request.Context(), sum); err != nil {
		if errors.Is(err, export.ErrDuplicateRun) {
			c.String(http.StatusConflict, err.Error())
			return
		}
		glog.Warningf("unable to store run %s of scan %q: %s\n", sum.RunID, sum.ScanID, err)
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	glog.Infof("stored run %s of scan %q from %s", sum.RunID, sum.ScanID, c.ClientIP())
	c.JSON(http.StatusOK, export.CollectResponse{
		Status:    "ok",
		JobCount:  len(sum.Results),
		CellCount: len(sum.Cells()),
	})
}

func (s *CellscanServer) scansHandler(c *gin.Context) {
	scans, err := s.store.Scans(c.Request.Context())
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"scans": scans})
}

func (s *CellscanServer) jobsHandler(c *gin.Context) {
	scanID := c.Param("scanID")
	jobs, err := s.store.Jobs(c.Request.Context(), scanID)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	if len(jobs) == 0 {
		c.String(http.StatusNotFound, "unknown scan %q", scanID)
		return
	}
	c.JSON(http.StatusOK, gin.H{"scan_id": scanID, "jobs": jobs})
}

func (s *CellscanServer) cellsHandler(c *gin.Context) {
	scanID := c.Param("scanID")
	cells, err := s.store.Cells(c.Request.Context(), scanID)
	if err != nil {
		c.String(http.StatusInternalServerError, err.Error())
		return
	}
	if cells == nil {
		cells = []scan.Cell{}
	}
	c.JSON(http.StatusOK, gin.H{"scan_id": scanID, "cells": cells})
}

func (s *CellscanServer) bandsHandler(c *gin.Context) {
	regions := s.bands.Regions()
	if q := c.Query("region"); q != "" {
		regions = strings.Split(q, ",")
	}
	bands, err := s.bands.BandsFor(regions)
	if err != nil {
		c.String(http.StatusNotFound, err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"regions": regions, "bands": bands})
}

func (s *CellscanServer) router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	v1 := r.Group(apiPrefix)
	v1.POST("/collect", s.collectHandler)
	v1.GET("/scans", s.scansHandler)
	v1.GET("/scans/:scanID/jobs", s.jobsHandler)
	v1.GET("/scans/:scanID/cells", s.cellsHandler)
	v1.GET("/bands", s.bandsHandler)
	return r
}

func main() {
	// Set defaults for glog flags. Can be overridden via cmdline.
	flag.Set("logtostderr", "false")
	flag.Set("stderrthreshold", "WARNING")
	flag.Set("v", "1")
	// Parse flags globally.
	flag.Parse()

	storeDSN := *dsn
	if *driver == "mysql" {
		var err error
		storeDSN, err = export.MySQLDSN(*mysqlServer, *mysqlUser, *mysqlPasswordFile, *mysqlDBName)
		if err != nil {
			glog.Exitf("%s", err)
		}
	}
	store, err := export.Open(*driver, storeDSN)
	if err != nil {
		glog.Exitf("%s", err)
	}
	defer store.Close()
	if err := store.Init(context.Background()); err != nil {
		glog.Exitf("unable to initialize history store: %s", err)
	}

	table := band.Default()
	if *bandFile != "" {
		if table, err = band.Load(*bandFile); err != nil {
			glog.Exitf("%s", err)
		}
	}

	// Configure and run webserver.
	gin.SetMode(gin.ReleaseMode)
	s := &CellscanServer{store: store, bands: table}
	srv := &http.Server{
		Addr:    *listen,
		Handler: s.router(),
	}
	if *certFile != "" || *keyFile != "" {
		glog.Fatal(srv.ListenAndServeTLS(*certFile, *keyFile))
	} else {
		glog.Infoln("Resorting to serving HTTP because there was no certificate and key defined.")
		glog.Fatal(srv.ListenAndServe())
	}
}
