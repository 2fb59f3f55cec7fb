package main

import (
	"fmt"
	"net"
	"os/signal"
	"syscall"

	"github.com/caochanhduong/CSE-Assistant-Server-Improve/internal/kb"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"google.golang.org/grpc"
)

// #region serve-kb
var serveAddr string

var serveKBCmd = &cobra.Command{
	Use:   "serve-kb",
	Short: "Serve the configured knowledge base over gRPC",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if cfg.KnowledgeBase.Source == "remote" {
			return fmt.Errorf("serve-kb: knowledge_base.source must be local, got remote")
		}
		db, closeDB, err := openDatabase(ctx, cfg.KnowledgeBase)
		defer closeDB()
		if err != nil {
			return err
		}
		addr := serveAddr
		if addr == "" {
			addr = cfg.Server.Addr
		}
		lis, err := net.Listen("tcp", addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		srv := grpc.NewServer()
		kb.Register(srv, kb.NewServer(db, logger))

		go func() {
			<-ctx.Done()
			srv.GracefulStop()
		}()
		logger.Info("knowledge base listening", zap.String("addr", lis.Addr().String()))
		return srv.Serve(lis)
	},
}

// #endregion serve-kb

// #region seed-kb
var (
	seedJSON   string
	seedDriver string
	seedDSN    string
	seedTable  string
)

var seedKBCmd = &cobra.Command{
	Use:   "seed-kb",
	Short: "Load a JSON record file into a SQL knowledge-base table",
	RunE: func(cmd *cobra.Command, args []string) error {
		records, err := kb.LoadJSON(seedJSON)
		if err != nil {
			return err
		}
		driver, dsn, table := seedDriver, seedDSN, seedTable
		if dsn == "" {
			dsn = cfg.KnowledgeBase.DSN
		}
		if table == "" {
			table = cfg.KnowledgeBase.Table
		}
		db, err := kb.OpenSQL(driver, dsn)
		if err != nil {
			return err
		}
		defer db.Close()

		n, err := kb.SeedSQL(cmd.Context(), db, table, records)
		if err != nil {
			return err
		}
		logger.Info("knowledge base seeded", zap.String("table", table), zap.Int("records", n))
		fmt.Fprintf(cmd.OutOrStdout(), "seeded %d records into %s\n", n, table)
		return nil
	},
}

func init() {
	serveKBCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (defaults to server.addr)")

	seedKBCmd.Flags().StringVar(&seedJSON, "json", "", "record file keyed by record key")
	seedKBCmd.Flags().StringVar(&seedDriver, "driver", "sqlite", "sqlite or postgres")
	seedKBCmd.Flags().StringVar(&seedDSN, "dsn", "", "database DSN (defaults to knowledge_base.dsn)")
	seedKBCmd.Flags().StringVar(&seedTable, "table", "", "table name (defaults to knowledge_base.table)")
	_ = seedKBCmd.MarkFlagRequired("json")
}

// #endregion seed-kb
