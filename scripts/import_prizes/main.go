package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"
	"github.com/mroshb/reward_engine/internal/config"
	"github.com/mroshb/reward_engine/internal/database"
	"github.com/mroshb/reward_engine/internal/repositories"
	"github.com/mroshb/reward_engine/internal/reports"
)

func main() {
	file := flag.String("file", "", "xlsx workbook with the prize sheet")
	configID := flag.Uint("config", 0, "gacha configuration ID (default: the active one)")
	dryRun := flag.Bool("dry-run", false, "parse and print without writing")
	flag.Parse()

	if *file == "" {
		log.Fatal("-file is required")
	}

	// Load .env
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()

	prizes, err := reports.ReadPrizes(f)
	if err != nil {
		log.Fatalf("failed to read prizes: %v", err)
	}
	for _, p := range prizes {
		stock := "unlimited"
		if p.Stock != nil {
			stock = fmt.Sprintf("%d", *p.Stock)
		}
		fmt.Printf("%-16s %-30s weight=%s stock=%s rare=%v\n", p.PrizeType, p.PrizeName, p.Weight, stock, p.IsRare)
	}
	if *dryRun {
		fmt.Printf("%d prizes parsed (dry run)\n", len(prizes))
		return
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		log.Fatal("failed to connect database:", err)
	}

	configs := repositories.NewConfigRepository(db)
	id := *configID
	if id == 0 {
		active, err := configs.ActiveRewardConfig(db)
		if err != nil {
			log.Fatalf("no active gacha configuration: %v", err)
		}
		id = active.ID
	}

	if err := configs.ReplacePrizes(id, prizes); err != nil {
		log.Fatalf("failed to replace prizes: %v", err)
	}
	fmt.Printf("Imported %d prizes into configuration %d\n", len(prizes), id)
}
