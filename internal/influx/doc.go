// Package influx delivers line-protocol payloads to an InfluxDB-compatible
// server.
//
// Two clients share the Client interface:
//   - V1Client posts to /write?db=<database> with optional Basic auth.
//   - V2Client uses the official influxdb-client-go v2 blocking write API
//     with token authentication; the database name is used as the bucket.
//
// # Usage
//
//	client, err := influx.New(cfg.Influx, 60*time.Second, "influxrelay/1.0")
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	res := client.Write(ctx, payload)
//	switch res.Kind {
//	case influx.Transient:
//	    // retry later
//	case influx.Permanent:
//	    // give up on this payload
//	}
//
// # Error Handling
//
// Write never returns a bare error. Every outcome is a Result whose Kind
// tells the caller whether a retry can help; Result.Err wraps one of the
// sentinel errors for errors.Is checks.
package influx
