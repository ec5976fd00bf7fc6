package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math"
	"math/rand/v2"
	"os"
	"os/signal"
	"syscall"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"chizu/campus-client/internal/mapview"
	"chizu/campus-client/internal/model"
	"chizu/campus-client/internal/position"
)

// metersPerDegreeLat is close enough for jitter at campus scale.
const metersPerDegreeLat = 111_320.0

func main() {
	brokerAddr := flag.String("broker", "tcp://localhost:1883", "MQTT broker address, e.g. tcp://localhost:1883")
	topic := flag.String("topic", "chizu/position", "Topic the map client watches for fixes")
	fromFlag := flag.String("from", "34.0975,-117.7105", "Walk start as lat,lng")
	toFlag := flag.String("to", "34.1012,-117.7090", "Walk end as lat,lng")
	steps := flag.Int("steps", 30, "Fixes between start and end")
	interval := flag.Duration("interval", 2*time.Second, "Interval between published fixes")
	jitter := flag.Float64("jitter", 4, "Maximum random offset in meters applied to each fix")
	accuracy := flag.Float64("accuracy", 10, "Reported fix accuracy in meters")
	loop := flag.Bool("loop", true, "Walk back and forth instead of stopping at the end")

	flag.Parse()

	from, err := mapview.ParseLatLng(*fromFlag)
	if err != nil {
		log.Fatalf("invalid -from: %v", err)
	}
	to, err := mapview.ParseLatLng(*toFlag)
	if err != nil {
		log.Fatalf("invalid -to: %v", err)
	}
	if *steps < 1 {
		log.Fatalf("-steps must be at least 1")
	}

	clientID := fmt.Sprintf("position-sim-%s", uuid.NewString())
	opts := mqtt.NewClientOptions().AddBroker(*brokerAddr).SetClientID(clientID)
	opts = opts.SetOrderMatters(false)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		log.Fatalf("failed to connect to broker: %v", token.Error())
	}
	log.Printf("connected to MQTT broker %s as %s", *brokerAddr, clientID)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()

	step := 0
	publish := func() bool {
		at := offset(walk(from, to, step, *steps, *loop), *jitter)
		fix := position.Fix{
			Lat:       at.Lat,
			Lng:       at.Lng,
			Accuracy:  *accuracy,
			Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		}

		data, err := json.Marshal(fix)
		if err != nil {
			log.Printf("failed to encode fix: %v", err)
			return true
		}

		token := client.Publish(*topic, 0, false, data)
		token.Wait()
		if err := token.Error(); err != nil {
			log.Printf("publish error: %v", err)
			return true
		}
		log.Printf("published %s step=%d at=%s", *topic, step, at)

		step++
		return *loop || step <= *steps
	}

	if !publish() {
		client.Disconnect(250)
		return
	}

	for {
		select {
		case <-ctx.Done():
			log.Print("received shutdown signal, disconnecting")
			client.Disconnect(250)
			return
		case <-ticker.C:
			if !publish() {
				log.Print("walk finished, disconnecting")
				client.Disconnect(250)
				return
			}
		}
	}
}

// walk interpolates the position at step along from→to. With loop set the
// walk turns around at either end.
func walk(from, to model.LatLng, step, steps int, loop bool) model.LatLng {
	if steps <= 0 {
		return from
	}
	n := step
	if loop {
		n = step % (2 * steps)
		if n > steps {
			n = 2*steps - n
		}
	} else if n > steps {
		n = steps
	}
	f := float64(n) / float64(steps)
	return model.LatLng{
		Lat: from.Lat + (to.Lat-from.Lat)*f,
		Lng: from.Lng + (to.Lng-from.Lng)*f,
	}
}

// offset moves p by up to meters in a random direction.
func offset(p model.LatLng, meters float64) model.LatLng {
	if meters <= 0 {
		return p
	}
	d := rand.Float64() * meters
	theta := rand.Float64() * 2 * math.Pi
	dLat := d * math.Cos(theta) / metersPerDegreeLat
	dLng := d * math.Sin(theta) / (metersPerDegreeLat * math.Cos(p.Lat*math.Pi/180))
	return model.LatLng{Lat: p.Lat + dLat, Lng: p.Lng + dLng}
}
