package postgres

// SQL for the flight base tables, the airport_stats aggregate and the
// precomputed distance table.

const (
	// Airports

	queryInsertAirport = `
		INSERT INTO airports (airport_code, airport_name, city, latitude, longitude, timezone)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	querySelectAirport = `
		SELECT airport_code, airport_name, city, latitude, longitude, timezone
		FROM airports
		WHERE airport_code = $1
	`

	queryListAirportsByName = `
		SELECT airport_code, airport_name, city, latitude, longitude, timezone
		FROM airports
		ORDER BY airport_name->>'en' ASC, airport_code ASC
	`

	queryListAirportsByCode = `
		SELECT airport_code, airport_name, city, latitude, longitude, timezone
		FROM airports
		ORDER BY airport_code ASC
	`

	// Tickets and flights

	queryInsertTicket = `
		INSERT INTO tickets (ticket_no, book_ref, passenger_id, passenger_name)
		VALUES ($1, $2, $3, $4)
	`

	queryInsertFlight = `
		INSERT INTO flights (
			flight_id, flight_no, scheduled_departure, scheduled_arrival,
			actual_departure, actual_arrival, departure_airport, arrival_airport,
			aircraft_code, status, passenger_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	// querySelectFlightForUpdate takes the flight row lock. Callers lock the
	// flight before the route's aggregate row, never the other way round.
	querySelectFlightForUpdate = `
		SELECT
			flight_id, flight_no, scheduled_departure, scheduled_arrival,
			actual_departure, actual_arrival, departure_airport, arrival_airport,
			aircraft_code, status, passenger_count
		FROM flights
		WHERE flight_id = $1
		FOR UPDATE
	`

	queryUpdateFlightStatus = `
		UPDATE flights
		SET status = $2, actual_departure = $3, actual_arrival = $4
		WHERE flight_id = $1
	`

	queryUpdateFlightPassengerCount = `
		UPDATE flights SET passenger_count = $2 WHERE flight_id = $1
	`

	// queryDeleteFlight relies on ON DELETE CASCADE from ticket_flights.
	queryDeleteFlight = `DELETE FROM flights WHERE flight_id = $1`

	queryInsertTicketFlight = `
		INSERT INTO ticket_flights (ticket_no, flight_id, fare_conditions, amount)
		VALUES ($1, $2, $3, $4)
	`

	queryDeleteTicketFlight = `
		DELETE FROM ticket_flights WHERE ticket_no = $1 AND flight_id = $2
	`

	// Route aggregates

	querySelectRouteStatsForUpdate = `
		SELECT
			route_key, departure_airport_id, arrival_airport_id,
			departure_airport_name, arrival_airport_name, distance_km,
			flights_count, passengers_count, flight_time_us, total_flight_time_us, updated_at
		FROM airport_stats
		WHERE route_key = $1
		FOR UPDATE
	`

	// queryInsertRouteStats returns no row when a concurrent transaction
	// created the route first. Under READ COMMITTED the insert waits for that
	// transaction, so a following SELECT ... FOR UPDATE sees its row.
	queryInsertRouteStats = `
		INSERT INTO airport_stats (
			route_key, departure_airport_id, arrival_airport_id,
			departure_airport_name, arrival_airport_name, distance_km,
			flights_count, passengers_count, flight_time_us, total_flight_time_us, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (route_key) DO NOTHING
		RETURNING route_key
	`

	// queryUpdateRouteCounters leaves distance and names alone: they are
	// fixed when the row is created.
	queryUpdateRouteCounters = `
		UPDATE airport_stats
		SET flights_count = $2,
			passengers_count = $3,
			flight_time_us = $4,
			total_flight_time_us = $5,
			updated_at = $6
		WHERE route_key = $1
	`

	queryUpsertRouteStats = `
		INSERT INTO airport_stats (
			route_key, departure_airport_id, arrival_airport_id,
			departure_airport_name, arrival_airport_name, distance_km,
			flights_count, passengers_count, flight_time_us, total_flight_time_us, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (route_key) DO UPDATE SET
			departure_airport_name = EXCLUDED.departure_airport_name,
			arrival_airport_name   = EXCLUDED.arrival_airport_name,
			distance_km            = EXCLUDED.distance_km,
			flights_count          = EXCLUDED.flights_count,
			passengers_count       = EXCLUDED.passengers_count,
			flight_time_us         = EXCLUDED.flight_time_us,
			total_flight_time_us   = EXCLUDED.total_flight_time_us,
			updated_at             = EXCLUDED.updated_at
	`

	queryResetRouteStats = `
		UPDATE airport_stats
		SET flights_count = 0,
			passengers_count = 0,
			flight_time_us = 0,
			total_flight_time_us = 0,
			updated_at = $1
	`

	queryListRouteStats = `
		SELECT
			route_key, departure_airport_id, arrival_airport_id,
			departure_airport_name, arrival_airport_name, distance_km,
			flights_count, passengers_count, flight_time_us, total_flight_time_us, updated_at
		FROM airport_stats
		WHERE ($1::text = '' OR departure_airport_id = $1)
		  AND ($2::text = '' OR arrival_airport_id = $2)
		ORDER BY route_key ASC
	`

	// queryLockForRebuild blocks concurrent writers to every table a rebuild
	// reads or rewrites while still allowing plain reads.
	queryLockForRebuild = `
		LOCK TABLE flights, ticket_flights, airport_stats IN SHARE ROW EXCLUSIVE MODE
	`

	// queryRecountPassengers sets passenger_count from ticket_flights. Within
	// one flight, distinct ticket_no is distinct (ticket_no, flight_id).
	queryRecountPassengers = `
		WITH counts AS (
			SELECT f.flight_id, COUNT(DISTINCT tf.ticket_no) AS n
			FROM flights f
			LEFT JOIN ticket_flights tf ON tf.flight_id = f.flight_id
			GROUP BY f.flight_id
		)
		UPDATE flights f
		SET passenger_count = c.n
		FROM counts c
		WHERE f.flight_id = c.flight_id
		  AND f.passenger_count <> c.n
	`

	// queryAggregateRoutes is the live read path: scheduled flights grouped by
	// route. Durations are summed in whole microseconds so the mean derived
	// from them matches airport_stats exactly.
	queryAggregateRoutes = `
		WITH scoped AS (
			SELECT
				f.flight_id,
				f.departure_airport,
				f.arrival_airport,
				(EXTRACT(EPOCH FROM (f.scheduled_arrival - f.scheduled_departure)) * 1000000)::BIGINT AS duration_us
			FROM flights f
			WHERE f.scheduled_departure IS NOT NULL
			  AND f.scheduled_arrival IS NOT NULL
			  AND ($1::text = '' OR f.departure_airport = $1)
			  AND ($2::text = '' OR f.arrival_airport = $2)
			  AND ($3::timestamptz IS NULL OR f.scheduled_departure >= $3)
			  AND ($4::timestamptz IS NULL OR f.scheduled_departure <= $4)
		),
		passengers AS (
			SELECT tf.flight_id, COUNT(DISTINCT tf.ticket_no) AS n
			FROM ticket_flights tf
			JOIN scoped s ON s.flight_id = tf.flight_id
			GROUP BY tf.flight_id
		)
		SELECT
			s.departure_airport,
			s.arrival_airport,
			dep.airport_name,
			arr.airport_name,
			dep.latitude,
			dep.longitude,
			arr.latitude,
			arr.longitude,
			COUNT(*) AS flights_count,
			COALESCE(SUM(p.n), 0)::BIGINT AS passengers_count,
			COALESCE(SUM(s.duration_us), 0)::BIGINT AS total_flight_time_us
		FROM scoped s
		JOIN airports dep ON dep.airport_code = s.departure_airport
		JOIN airports arr ON arr.airport_code = s.arrival_airport
		LEFT JOIN passengers p ON p.flight_id = s.flight_id
		GROUP BY s.departure_airport, s.arrival_airport, dep.airport_code, arr.airport_code
		ORDER BY s.departure_airport ASC, s.arrival_airport ASC
	`

	// Precomputed distances

	queryLookupDistance = `
		SELECT distance_km
		FROM airport_distances
		WHERE departure_airport = $1 AND arrival_airport = $2
		ORDER BY id DESC
		LIMIT 1
	`

	queryTruncateDistances = `TRUNCATE airport_distances RESTART IDENTITY`

	queryTableExists = `
		SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_name = $1
		)
	`
)

// distanceCopyColumns are the columns AppendDistances streams with COPY.
var distanceCopyColumns = []string{"departure_airport", "arrival_airport", "distance_km", "computed_at"}

// requiredTables must exist before the adapter accepts traffic.
var requiredTables = []string{"airports", "tickets", "flights", "ticket_flights", "airport_stats", "airport_distances"}
