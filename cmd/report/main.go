package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"prodfeed/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Operational snapshot of the ingestion tables: per-status upload counts,
// catalog size, and optionally the most recent upload records.
func main() {
	list := flag.Int("list", 0, "also list the N most recent uploads")
	status := flag.String("status", "", "only count/list uploads with this status")
	flag.Parse()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		fmt.Fprintln(os.Stderr, "DB_DSN not set; export DB_DSN and retry")
		os.Exit(2)
	}
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("open db: %v", err)
	}

	fmt.Println("Upload status summary:")
	for _, s := range []string{models.StatusPending, models.StatusProcessing, models.StatusCompleted, models.StatusFailed} {
		if *status != "" && s != *status {
			continue
		}
		var n int64
		if err := gdb.Model(&models.FileUpload{}).Where("status = ?", s).Count(&n).Error; err != nil {
			log.Fatalf("count uploads: %v", err)
		}
		fmt.Printf("  %-10s %d\n", s, n)
	}

	var products int64
	if err := gdb.Model(&models.Product{}).Count(&products).Error; err != nil {
		log.Fatalf("count products: %v", err)
	}
	var dupes int64
	if err := gdb.Model(&models.Product{}).Where("occurrence_count > 1").Count(&dupes).Error; err != nil {
		log.Fatalf("count duplicate-key products: %v", err)
	}
	fmt.Printf("Catalog: %d products (%d from duplicated feed keys)\n", products, dupes)

	if *list > 0 {
		q := gdb.Model(&models.FileUpload{})
		if *status != "" {
			q = q.Where("status = ?", *status)
		}
		var rows []models.FileUpload
		if err := q.Order("created_at desc").Limit(*list).Find(&rows).Error; err != nil {
			log.Fatalf("fetch uploads: %v", err)
		}
		for _, r := range rows {
			fmt.Printf("%d|%s|%s|%d/%d|%s|%s\n",
				r.ID, r.FileName, r.Status, r.ProcessedRows, r.TotalRows,
				r.ErrorMessage, r.CreatedAt.Format(time.RFC3339))
		}
	}
}
