// Package rowlife evolves Conway's Game of Life on a lattice whose rows are
// owned by independent participants.
//
// Each participant holds exactly one row. Every generation it trades its
// row with the participants directly above and below (the halo exchange)
// and then computes its next row from the three rows it now holds. The
// lattice is bounded: the first and last participant have no neighbour on
// one side, and cells beyond either end of a row do not exist.
//
// # Exchange ordering
//
// Exchanges use rendezvous sends, so a naive "everyone sends first" order
// deadlocks. Even participants send upward, send downward, then receive;
// odd participants receive from above, receive from below, then send.
// Every send is paired with a receive that its peer is already waiting in.
//
// # Basic Usage
//
//	// Compile a pattern into a lattice file
//	rowc glider.rowp lattice.txt
//
//	// Run 17 participants in one process for 30 generations
//	rowrun --lattice lattice.txt --columns 17 -p 17 -n 30
//
//	// Or one process per participant over websockets
//	rowrun --peers host0:7000,host1:7000,host2:7000 -p 3 --rank 1 ...
//
// # Package Structure
//
//   - core: rows, cells, topology, neighbour values and the row codec
//   - kernels: the transition rule and neighbour counting
//   - transport: in-process mesh and websocket row transports
//   - halo: the parity-ordered halo exchange
//   - runtime: participants, their arena and in-process clusters
//   - model: lattice files, suppliers, consumers and rendering
//   - compiler: the pattern language compiled by rowc
//   - config, logging, telemetry, status: the ambient stack
//   - cmd: command-line tools (rowc, rowrun, rowperf)
package rowlife
