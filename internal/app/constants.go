package app

import "tute/internal/domain"

// PlayersToStartGame is the exact number of occupied seats required to start.
const PlayersToStartGame = domain.NumSeats

// FirstDealer deals round one, which puts seat 0 on lead.
const FirstDealer = 1
