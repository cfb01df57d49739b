package chain

// 工厂合约ABI（只读部分）
const factoryABI = `[
	{
		"inputs": [],
		"name": "getCampaigns",
		"outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "totalCampaigns",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`

// 众筹活动合约ABI（只读部分）
const campaignABI = `[
	{
		"inputs": [],
		"name": "details",
		"outputs": [
			{"internalType": "address", "name": "creator", "type": "address"},
			{"internalType": "uint256", "name": "goal", "type": "uint256"},
			{"internalType": "uint256", "name": "deadline", "type": "uint256"},
			{"internalType": "uint256", "name": "amountRaised", "type": "uint256"},
			{"internalType": "bool", "name": "goalBased", "type": "bool"},
			{"internalType": "bool", "name": "withdrawn", "type": "bool"},
			{"internalType": "string", "name": "metadataURI", "type": "string"},
			{"internalType": "bool", "name": "active", "type": "bool"},
			{"internalType": "uint256", "name": "minContribution", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getProgress",
		"outputs": [
			{"internalType": "uint256", "name": "raised", "type": "uint256"},
			{"internalType": "uint256", "name": "goal", "type": "uint256"},
			{"internalType": "uint256", "name": "percentage", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "getDonors",
		"outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "", "type": "address"}],
		"name": "donations",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	}
]`
