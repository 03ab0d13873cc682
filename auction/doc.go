// Package auction instantiates the round engine as a sealed-bid Vickrey
// auction for a single registry token. Bids stay encrypted until the round
// deadline; the highest qualifying bidder wins and pays the second-highest
// qualifying bid, or the reserve price when no second bid exists.
package auction
