package main

import (
	"fmt"
	"log"
	"math/rand"
	"time"

	"github.com/joripage/marketreplay/pkg/orderbook"
)

const (
	numOrders = 1_000_000
	minTick   = 10_000
	maxTick   = 20_000
	minLots   = 1
	maxLots   = 100
)

func randomEntry(id int, now int64) *orderbook.Entry {
	side := orderbook.BUY
	if rand.Intn(2) == 0 {
		side = orderbook.SELL
	}
	tick := int64(rand.Intn(maxTick-minTick+1) + minTick)
	lots := int64(rand.Intn(maxLots-minLots+1) + minLots)

	return &orderbook.Entry{
		OrderID: int64(id),
		Side:    side,
		Tick:    tick,
		Lots:    lots,
		Time:    now,
		Seq:     int64(id),
		Origin:  orderbook.SYNTHETIC,
	}
}

func main() {
	rand.Seed(time.Now().UnixNano())

	book := orderbook.NewBook("BENCH", orderbook.ModeLiveShadow)
	totalMatched := 0
	totalLots := int64(0)
	now := time.Now().UnixNano() / int64(time.Millisecond)

	start := time.Now()
	for i := 0; i < numOrders; i++ {
		results := book.Submit(randomEntry(i+1, now))
		for _, r := range results {
			totalMatched++
			totalLots += r.Lots
			if totalMatched <= 5 {
				log.Printf("match: BUY[%d] <=> SELL[%d] @ %d lots %d\n",
					r.BuyOrderID, r.SellOrderID, r.Tick, r.Lots)
			}
		}
	}

	elapsed := time.Since(start)
	stats := book.Statistics()

	fmt.Println("--------")
	fmt.Printf("Total Orders      : %d\n", numOrders)
	fmt.Printf("Total Matches     : %d\n", totalMatched)
	fmt.Printf("Total Matched Lots: %d\n", totalLots)
	fmt.Printf("Resting Orders    : %d\n", book.Len())
	fmt.Printf("Turnover          : %d\n", stats.TotalTurnover())
	fmt.Printf("Time Taken        : %s\n", elapsed)
	fmt.Printf("Orders/sec        : %.0f\n", float64(numOrders)/elapsed.Seconds())
}
